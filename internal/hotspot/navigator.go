package hotspot

import "hotspotter/internal/scene"

// Tree is the read side of the host document.
type Tree interface {
	Parent(n *scene.Node) *scene.Node
	Children(n *scene.Node) []*scene.Node
	FindAll(n *scene.Node, match func(*scene.Node) bool) []*scene.Node
	PluginData(n *scene.Node, key string) string
}

// Navigator locates frames and hotspots within a Tree.
type Navigator struct {
	tree Tree
}

func NewNavigator(t Tree) *Navigator {
	return &Navigator{tree: t}
}

// IsHotspot checks the annotation flag only; the node type is irrelevant.
func (nav *Navigator) IsHotspot(n *scene.Node) bool {
	return n != nil && nav.tree.PluginData(n, FlagKey) == "true"
}

// FindContainingFrame returns the nearest FRAME among n and its ancestors.
func (nav *Navigator) FindContainingFrame(n *scene.Node) *scene.Node {
	for cur := n; cur != nil; cur = nav.tree.Parent(cur) {
		if cur.Type == scene.NodeTypeFrame {
			return cur
		}
	}
	return nil
}

// Hotspots returns every hotspot below frame, in document order.
func (nav *Navigator) Hotspots(frame *scene.Node) []*scene.Node {
	return nav.tree.FindAll(frame, nav.IsHotspot)
}

// FindSiblingHotspots returns the hotspots sharing n's containing frame.
func (nav *Navigator) FindSiblingHotspots(n *scene.Node, excludeSelf bool) []*scene.Node {
	frame := nav.FindContainingFrame(n)
	if frame == nil {
		return nil
	}
	all := nav.Hotspots(frame)
	if !excludeSelf {
		return all
	}
	out := all[:0:0]
	for _, h := range all {
		if h != n {
			out = append(out, h)
		}
	}
	return out
}

// Names reads the logical names of hotspots, failing on the first malformed one.
func (nav *Navigator) Names(hotspots []*scene.Node) ([]string, error) {
	names := make([]string, 0, len(hotspots))
	for _, h := range hotspots {
		a, err := ReadAnnotation(nav.tree, h)
		if err != nil {
			return nil, err
		}
		names = append(names, a.Name)
	}
	return names, nil
}
