package hotspot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"hotspotter/internal/scene"
)

// Document is the host capability set the Manager mutates through.
type Document interface {
	Tree
	Writer
	SetText(n *scene.Node, text string)
	SetPosition(n *scene.Node, x, y float64)
	AppendChild(parent, child *scene.Node) error
	SetSelection(nodes ...*scene.Node)
	ScrollAndZoomIntoView(nodes ...*scene.Node)
	EnsureTemplate(name string, size float64) (*scene.Node, error)
	Instantiate(template *scene.Node) *scene.Node
}

// MarkerTemplate names the component hotspot markers are instantiated from.
type MarkerTemplate struct {
	Name string
	Size float64
}

var DefaultMarker = MarkerTemplate{Name: "image-hotspot/Hotspot", Size: 48}

// Manager creates, renames and deduplicates hotspots.
type Manager struct {
	doc    Document
	nav    *Navigator
	marker MarkerTemplate
}

func NewManager(doc Document, marker MarkerTemplate) *Manager {
	if marker.Name == "" {
		marker.Name = DefaultMarker.Name
	}
	if marker.Size <= 0 {
		marker.Size = DefaultMarker.Size
	}
	return &Manager{doc: doc, nav: NewNavigator(doc), marker: marker}
}

func (m *Manager) Navigator() *Navigator {
	return m.nav
}

// Create adds a hotspot called name to the frame containing target. The new
// marker sits at the frame's centre point, is labelled with its position among
// the frame's hotspots and becomes the selection.
func (m *Manager) Create(target *scene.Node, name string) (*scene.Node, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	frame := m.nav.FindContainingFrame(target)
	if frame == nil {
		return nil, ErrNoFrameSelected
	}

	existing := m.nav.Hotspots(frame)
	names, err := m.nav.Names(existing)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if n == name {
			return nil, fmt.Errorf("%w: %q in frame %q", ErrDuplicateName, name, frame.Name)
		}
	}

	template, err := m.doc.EnsureTemplate(m.marker.Name, m.marker.Size)
	if err != nil {
		return nil, err
	}
	marker := m.doc.Instantiate(template)
	Tag(m.doc, marker, name)
	m.doc.SetPosition(marker, frame.Width/2, frame.Height/2)
	m.AssignCreationLabel(marker, existing)

	if err := m.doc.AppendChild(frame, marker); err != nil {
		return nil, err
	}
	m.doc.ScrollAndZoomIntoView(frame)
	m.doc.SetSelection(marker)
	return marker, nil
}

// Rename overwrites the identity of the single selected hotspot. Uniqueness
// within the frame is not checked. An empty selection is a no-op.
func (m *Manager) Rename(selection []*scene.Node, name string) error {
	switch {
	case len(selection) == 0:
		return nil
	case len(selection) > 1, !m.nav.IsHotspot(selection[0]):
		return ErrAmbiguousSelection
	case strings.TrimSpace(name) == "":
		return ErrEmptyName
	}
	writeIdentity(m.doc, selection[0], name)
	return nil
}

// AssignCreationLabel labels n with its 1-based position after siblings.
// Labels are not renumbered when siblings are later deleted.
func (m *Manager) AssignCreationLabel(n *scene.Node, siblings []*scene.Node) {
	for _, c := range m.doc.Children(n) {
		if c.Name == scene.LabelName && c.Type == scene.NodeTypeText {
			m.doc.SetText(c, strconv.Itoa(len(siblings)+1))
			return
		}
	}
}

// Adopt reconciles a hotspot that appeared without going through Create, for
// instance a pasted copy: it is labelled after its siblings and renamed with
// a numeric suffix.
func (m *Manager) Adopt(n *scene.Node) (string, error) {
	a, err := ReadAnnotation(m.doc, n)
	if err != nil {
		return "", err
	}
	siblings := m.nav.FindSiblingHotspots(n, true)
	names, err := m.nav.Names(siblings)
	if err != nil {
		return "", err
	}

	m.AssignCreationLabel(n, siblings)
	name := TrimSuffix(a.Name) + ResolveDuplicateName(a.Name, names)
	writeIdentity(m.doc, n, name)
	return name, nil
}

var suffixPattern = regexp.MustCompile(`-\d+$`)

// TrimSuffix removes one trailing "-<digits>" suffix.
func TrimSuffix(name string) string {
	if loc := suffixPattern.FindStringIndex(name); loc != nil {
		return name[:loc[0]]
	}
	return name
}

// ResolveDuplicateName returns the "-<n>" suffix to put on the unsuffixed form
// of name. An unsuffixed name gets "-1". A suffixed name keeps its suffix
// unless it, or its unsuffixed form, is among siblings, in which case the
// unsuffixed form is resolved again with the next attempt number.
//
// Names with chained suffixes ("a-1-2") or gaps in the sibling numbering can
// still resolve to a taken name.
func ResolveDuplicateName(name string, siblings []string) string {
	taken := make(map[string]struct{}, len(siblings))
	for _, s := range siblings {
		taken[s] = struct{}{}
	}
	return resolveSuffix(name, taken, 1)
}

func resolveSuffix(name string, taken map[string]struct{}, attempt int) string {
	loc := suffixPattern.FindStringIndex(name)
	if loc == nil {
		return "-" + strconv.Itoa(attempt)
	}
	base := name[:loc[0]]
	_, fullTaken := taken[name]
	_, baseTaken := taken[base]
	if fullTaken || baseTaken {
		return resolveSuffix(base, taken, attempt+1)
	}
	return name[loc[0]:]
}
