package selection

import (
	"hotspotter/internal/hotspot"
	"hotspotter/internal/scene"
	"hotspotter/internal/snapshot"
)

type Classification string

const (
	NoSelection                   Classification = "NO_SELECTION"
	NoSelectionContainingHotspots Classification = "NO_SELECTION_CONTAINING_HOTSPOTS"
	NoHotspotsSelected            Classification = "NO_HOTSPOTS_SELECTED"
	OneHotspotSelected            Classification = "ONE_HOTSPOT_SELECTED"
	MultipleHotspotsSelected      Classification = "MULTIPLE_HOTSPOTS_SELECTED"
)

// Result is what the presentation layer receives for a selection.
// Snapshot is nil for the two "nothing to show" classifications and Hotspot
// is only set when exactly one hotspot is selected.
type Result struct {
	Classification Classification      `json:"type"`
	Snapshot       *snapshot.Snapshot  `json:"data,omitempty"`
	Hotspot        *hotspot.Annotation `json:"hotspot,omitempty"`
}

// Source is the host view the aggregator reads from.
type Source interface {
	hotspot.Tree
	Selection() []*scene.Node
}

// Aggregator classifies the current selection and builds the export snapshot
// of the frames it touches. Nothing is cached between calls.
type Aggregator struct {
	src Source
	nav *hotspot.Navigator
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src, nav: hotspot.NewNavigator(src)}
}

// Compute derives the classification and snapshot from the live selection.
func (a *Aggregator) Compute() (Result, error) {
	sel := a.src.Selection()
	if len(sel) == 0 {
		return Result{Classification: NoSelection}, nil
	}

	frames := a.relevantFrames(sel)
	if len(frames) == 0 {
		return Result{Classification: NoSelectionContainingHotspots}, nil
	}

	snap, err := a.Snapshot(frames)
	if err != nil {
		return Result{}, err
	}

	var selected []*scene.Node
	for _, n := range sel {
		if a.nav.IsHotspot(n) {
			selected = append(selected, n)
		}
	}

	res := Result{Snapshot: snap}
	switch len(selected) {
	case 0:
		res.Classification = NoHotspotsSelected
	case 1:
		identity, err := hotspot.ReadAnnotation(a.src, selected[0])
		if err != nil {
			return Result{}, err
		}
		res.Classification = OneHotspotSelected
		res.Hotspot = &identity
	default:
		res.Classification = MultipleHotspotsSelected
	}
	return res, nil
}

// relevantFrames unions, in first-seen order, the containing frame of every
// selected node, every selected frame directly holding a hotspot, and the
// containing frame of every selected hotspot.
func (a *Aggregator) relevantFrames(sel []*scene.Node) []*scene.Node {
	var frames []*scene.Node
	seen := make(map[string]struct{})
	add := func(f *scene.Node) {
		if f == nil {
			return
		}
		if _, ok := seen[f.ID]; ok {
			return
		}
		seen[f.ID] = struct{}{}
		frames = append(frames, f)
	}

	for _, n := range sel {
		add(a.nav.FindContainingFrame(n))
	}
	for _, n := range sel {
		if n.Type != scene.NodeTypeFrame {
			continue
		}
		for _, c := range a.src.Children(n) {
			if a.nav.IsHotspot(c) {
				add(n)
				break
			}
		}
	}
	for _, n := range sel {
		if a.nav.IsHotspot(n) {
			add(a.nav.FindContainingFrame(n))
		}
	}
	return frames
}

// Snapshot packages frames and every hotspot below each of them.
func (a *Aggregator) Snapshot(frames []*scene.Node) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{Frames: make([]snapshot.Frame, 0, len(frames))}
	for _, f := range frames {
		frame := snapshot.Frame{
			NodeRef:  f.ID,
			ID:       hotspot.Slug(f.Name),
			Name:     f.Name,
			Width:    f.Width,
			Height:   f.Height,
			Hotspots: []snapshot.Hotspot{},
		}
		for _, h := range a.nav.Hotspots(f) {
			identity, err := hotspot.ReadAnnotation(a.src, h)
			if err != nil {
				return nil, err
			}
			frame.Hotspots = append(frame.Hotspots, snapshot.Hotspot{
				NodeRef: h.ID,
				ID:      identity.ID,
				Name:    identity.Name,
				Left:    fraction(h.X, f.Width),
				Top:     fraction(h.Y, f.Height),
				X:       h.X,
				Y:       h.Y,
			})
		}
		snap.Frames = append(snap.Frames, frame)
	}
	return snap, nil
}

// DocumentSnapshot exports every frame under root that holds at least one
// hotspot, regardless of the selection.
func (a *Aggregator) DocumentSnapshot(root *scene.Node) (*snapshot.Snapshot, error) {
	var frames []*scene.Node
	for _, f := range a.src.FindAll(root, func(n *scene.Node) bool { return n.Type == scene.NodeTypeFrame }) {
		if len(a.nav.Hotspots(f)) > 0 {
			frames = append(frames, f)
		}
	}
	return a.Snapshot(frames)
}

// fraction keeps zero-sized frames from producing non-finite positions.
func fraction(v, size float64) float64 {
	if size == 0 {
		return 0
	}
	return v / size
}
