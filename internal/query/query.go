// Package query selects document nodes with boolean filter expressions such as
//
//	hotspot && frame == "Living Room" && x > 100
package query

import (
	"errors"
	"fmt"
	"strings"

	"hotspotter/internal/hotspot"
	"hotspotter/internal/scene"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

var ErrEmptyExpression = errors.New("filter expression must not be empty")

// Env is the set of variables visible to a filter expression for one node.
type Env struct {
	ID      string  `expr:"id"`
	Name    string  `expr:"name"`
	Type    string  `expr:"type"`
	X       float64 `expr:"x"`
	Y       float64 `expr:"y"`
	Width   float64 `expr:"width"`
	Height  float64 `expr:"height"`
	Text    string  `expr:"text"`
	Hotspot bool    `expr:"hotspot"`
	// Label is the hotspot's annotated name, empty for other nodes.
	Label string `expr:"label"`
	// Frame is the name of the closest enclosing frame, the node's own name
	// when it is a frame.
	Frame string `expr:"frame"`
}

// Filter is a compiled filter expression.
type Filter struct {
	source  string
	program *exprvm.Program
}

// Compile parses src and checks that it yields a boolean.
func Compile(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, ErrEmptyExpression
	}
	program, err := exprlang.Compile(src, exprlang.Env(Env{}), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", src, err)
	}
	return &Filter{source: src, program: program}, nil
}

func (f *Filter) String() string {
	return f.source
}

// Match evaluates the filter against env.
func (f *Filter) Match(env Env) (bool, error) {
	out, err := exprlang.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.source, err)
	}
	return out.(bool), nil
}

// NewEnv describes n for filter evaluation.
func NewEnv(t hotspot.Tree, n *scene.Node) Env {
	nav := hotspot.NewNavigator(t)
	env := Env{
		ID:      n.ID,
		Name:    n.Name,
		Type:    string(n.Type),
		X:       n.X,
		Y:       n.Y,
		Width:   n.Width,
		Height:  n.Height,
		Text:    n.Text,
		Hotspot: nav.IsHotspot(n),
	}
	if env.Hotspot {
		if a, err := hotspot.ReadAnnotation(t, n); err == nil {
			env.Label = a.Name
		}
	}
	if frame := nav.FindContainingFrame(n); frame != nil {
		env.Frame = frame.Name
	}
	return env
}

// Select returns the nodes under the document root matching f, in pre-order.
func Select(doc *scene.Document, f *Filter) ([]*scene.Node, error) {
	var out []*scene.Node
	for _, n := range doc.FindAll(doc.Root(), nil) {
		ok, err := f.Match(NewEnv(doc, n))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}
