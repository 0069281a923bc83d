// Package docfile seeds a document from a YAML description of its frames,
// plain nodes and pre-tagged hotspots:
//
//	frames:
//	  - name: Living Room
//	    width: 800
//	    height: 600
//	    children:
//	      - hotspot: Door
//	        x: 120
//	        y: 300
//	      - name: Sofa
//	        type: OTHER
package docfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"hotspotter/internal/hotspot"
	"hotspotter/internal/scene"

	"gopkg.in/yaml.v3"
)

var ErrInvalidNode = errors.New("invalid node description")

type File struct {
	Frames []NodeSpec `yaml:"frames"`
}

// NodeSpec describes one node. A non-empty Hotspot turns the entry into a
// marker instance tagged with that name; it must sit inside a frame.
type NodeSpec struct {
	Name     string     `yaml:"name"`
	Type     string     `yaml:"type"`
	X        *float64   `yaml:"x"`
	Y        *float64   `yaml:"y"`
	Width    float64    `yaml:"width"`
	Height   float64    `yaml:"height"`
	Text     string     `yaml:"text"`
	Hotspot  string     `yaml:"hotspot"`
	Selected bool       `yaml:"selected"`
	Children []NodeSpec `yaml:"children"`
}

// Load decodes a description, rejecting unknown keys.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to decode document description: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Load(file)
}

type builder struct {
	doc      *scene.Document
	ids      *hotspot.Manager
	marker   hotspot.MarkerTemplate
	selected []*scene.Node
}

// Build creates a new document holding the described tree. Hotspots are
// labelled in file order, and their names must be unique within a frame.
func (f *File) Build(marker hotspot.MarkerTemplate, opts ...scene.Option) (*scene.Document, error) {
	d := scene.NewDocument(opts...)
	if marker.Name == "" {
		marker.Name = hotspot.DefaultMarker.Name
	}
	if marker.Size <= 0 {
		marker.Size = hotspot.DefaultMarker.Size
	}
	b := &builder{doc: d, ids: hotspot.NewManager(d, marker), marker: marker}

	for i, spec := range f.Frames {
		if err := b.add(d.Root(), spec, fmt.Sprintf("frames[%d]", i)); err != nil {
			return nil, err
		}
	}
	d.SetSelection(b.selected...)
	return d, nil
}

func (b *builder) add(parent *scene.Node, spec NodeSpec, path string) error {
	var (
		n   *scene.Node
		err error
	)
	if spec.Hotspot != "" {
		n, err = b.addHotspot(parent, spec, path)
	} else {
		n, err = b.addPlain(parent, spec, path)
	}
	if err != nil {
		return err
	}
	if spec.Selected {
		b.selected = append(b.selected, n)
	}

	for i, child := range spec.Children {
		if err := b.add(n, child, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addPlain(parent *scene.Node, spec NodeSpec, path string) (*scene.Node, error) {
	typ := scene.NodeTypeOther
	switch {
	case spec.Type != "":
		typ = scene.ParseNodeType(strings.ToUpper(strings.TrimSpace(spec.Type)))
	case parent == b.doc.Root():
		typ = scene.NodeTypeFrame
	}
	if typ == scene.NodeTypePage {
		return nil, fmt.Errorf("%s: %w: nested pages are not supported", path, ErrInvalidNode)
	}
	if spec.Width < 0 || spec.Height < 0 {
		return nil, fmt.Errorf("%s: %w: negative size", path, ErrInvalidNode)
	}

	n := b.doc.NewNode(typ, spec.Name, scene.Geometry{
		X:      value(spec.X, 0),
		Y:      value(spec.Y, 0),
		Width:  spec.Width,
		Height: spec.Height,
	})
	n.Text = spec.Text
	if err := b.doc.AppendChild(parent, n); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// addHotspot instantiates a tagged marker. Without coordinates it is placed at
// the centre of its frame, like an interactively created hotspot.
func (b *builder) addHotspot(parent *scene.Node, spec NodeSpec, path string) (*scene.Node, error) {
	nav := b.ids.Navigator()
	frame := nav.FindContainingFrame(parent)
	if frame == nil {
		return nil, fmt.Errorf("%s: %w", path, hotspot.ErrNoFrameSelected)
	}

	siblings := nav.Hotspots(frame)
	names, err := nav.Names(siblings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, name := range names {
		if name == spec.Hotspot {
			return nil, fmt.Errorf("%s: %w: %q in frame %q", path, hotspot.ErrDuplicateName, name, frame.Name)
		}
	}

	template, err := b.doc.EnsureTemplate(b.marker.Name, b.marker.Size)
	if err != nil {
		return nil, err
	}
	n := b.doc.Instantiate(template)
	hotspot.Tag(b.doc, n, spec.Hotspot)
	b.doc.SetPosition(n, value(spec.X, frame.Width/2), value(spec.Y, frame.Height/2))
	b.ids.AssignCreationLabel(n, siblings)

	if err := b.doc.AppendChild(parent, n); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func value(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
