package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"hotspotter/internal/snapshot"
)

// Options tune number formatting. A RemBase of zero or less falls back to
// DefaultOptions; a negative precision does too, while zero rounds to integers.
type Options struct {
	RemBase       float64
	JSONPrecision int
	CSSPrecision  int
}

var DefaultOptions = Options{RemBase: 16, JSONPrecision: 5, CSSPrecision: 3}

// Encoder renders snapshots as text.
type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) *Encoder {
	if opts.RemBase <= 0 {
		opts.RemBase = DefaultOptions.RemBase
	}
	if opts.JSONPrecision < 0 {
		opts.JSONPrecision = DefaultOptions.JSONPrecision
	}
	if opts.CSSPrecision < 0 {
		opts.CSSPrecision = DefaultOptions.CSSPrecision
	}
	return &Encoder{opts: opts}
}

// Encode renders snap in the requested format.
func (e *Encoder) Encode(format Format, snap *snapshot.Snapshot) (string, error) {
	switch format {
	case FormatJSON:
		return e.JSON(snap)
	case FormatCSS:
		return e.CSS(snap), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

type jsonDocument struct {
	Frames []jsonFrame `json:"frames"`
}

type jsonFrame struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Width    float64       `json:"width"`
	Height   float64       `json:"height"`
	Hotspots []jsonHotspot `json:"hotspots"`
}

type jsonHotspot struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// JSON renders the snapshot without node references or raw coordinates.
// Positions keep JSONPrecision decimals. Names are written verbatim, without
// HTML escaping.
func (e *Encoder) JSON(snap *snapshot.Snapshot) (string, error) {
	out := jsonDocument{Frames: []jsonFrame{}}
	if snap != nil {
		for _, f := range snap.Frames {
			jf := jsonFrame{ID: f.ID, Name: f.Name, Width: f.Width, Height: f.Height, Hotspots: []jsonHotspot{}}
			for _, h := range f.Hotspots {
				jf.Hotspots = append(jf.Hotspots, jsonHotspot{
					ID:   h.ID,
					Name: h.Name,
					Left: round(h.Left, e.opts.JSONPrecision),
					Top:  round(h.Top, e.opts.JSONPrecision),
				})
			}
			out.Frames = append(out.Frames, jf)
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeJSON parses JSON produced by Encoder.JSON back into a snapshot. The
// input is checked against the export schema first.
// Node references and raw coordinates are not part of the format and stay zero.
func DecodeJSON(data []byte) (*snapshot.Snapshot, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode export json: %w", err)
	}
	if err := validateExport(v); err != nil {
		return nil, err
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode export json: %w", err)
	}
	snap := &snapshot.Snapshot{Frames: make([]snapshot.Frame, 0, len(doc.Frames))}
	for _, jf := range doc.Frames {
		f := snapshot.Frame{ID: jf.ID, Name: jf.Name, Width: jf.Width, Height: jf.Height, Hotspots: []snapshot.Hotspot{}}
		for _, jh := range jf.Hotspots {
			f.Hotspots = append(f.Hotspots, snapshot.Hotspot{ID: jh.ID, Name: jh.Name, Left: jh.Left, Top: jh.Top})
		}
		snap.Frames = append(snap.Frames, f)
	}
	return snap, nil
}

// CSS renders one sizing rule per frame followed by one positioning rule per
// hotspot. Sizes are in rem with the pixel value as a comment; positions are
// percentages with CSSPrecision decimals.
func (e *Encoder) CSS(snap *snapshot.Snapshot) string {
	if snap == nil {
		return ""
	}
	var sb strings.Builder
	for i, f := range snap.Frames {
		if i > 0 {
			sb.WriteString("\n")
		}
		frameSel := fmt.Sprintf(".frame[data-id=%q]", f.ID)
		sb.WriteString(frameSel + " {\n")
		sb.WriteString(fmt.Sprintf("  width: %s; /* %spx */\n", e.rem(f.Width), formatNumber(f.Width)))
		sb.WriteString(fmt.Sprintf("  height: %s; /* %spx */\n", e.rem(f.Height), formatNumber(f.Height)))
		sb.WriteString("}\n")

		for _, h := range f.Hotspots {
			sb.WriteString(fmt.Sprintf("%s .hotspot[data-id=%q] {\n", frameSel, h.ID))
			sb.WriteString(fmt.Sprintf("  left: %s%%;\n", formatNumber(round(h.Left*100, e.opts.CSSPrecision))))
			sb.WriteString(fmt.Sprintf("  top: %s%%;\n", formatNumber(round(h.Top*100, e.opts.CSSPrecision))))
			sb.WriteString("}\n")
		}
	}
	return sb.String()
}

func (e *Encoder) rem(px float64) string {
	return formatNumber(px/e.opts.RemBase) + "rem"
}
