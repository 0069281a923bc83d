package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSS  Format = "css"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatCSS, FormatJSON}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSS:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want css or json)", s)
	}
}

// round keeps at most precision decimals, dropping trailing zeros once printed.
func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
