package scene

import (
	"fmt"
	"sort"
)

// Record is the flat, persistable form of one attached node.
type Record struct {
	ID       string
	ParentID string
	Index    int
	Type     NodeType
	Name     string
	Geometry Geometry
	Text     string
	Data     map[string]string
}

// Records flattens the attached tree in pre-order, root first.
func (d *Document) Records() []Record {
	root := d.Root()
	out := []Record{toRecord(root, "", 0)}
	var walk func(*Node)
	walk = func(n *Node) {
		for i, c := range d.Children(n) {
			out = append(out, toRecord(c, n.ID, i))
			walk(c)
		}
	}
	walk(root)
	return out
}

// SelectionIDs returns the ids of the current selection.
func (d *Document) SelectionIDs() []string {
	return append([]string(nil), d.selection...)
}

func toRecord(n *Node, parentID string, index int) Record {
	r := Record{
		ID:       n.ID,
		ParentID: parentID,
		Index:    index,
		Type:     n.Type,
		Name:     n.Name,
		Geometry: n.Geometry,
		Text:     n.Text,
	}
	if len(n.data) > 0 {
		r.Data = make(map[string]string, len(n.data))
		for k, v := range n.data {
			r.Data[k] = v
		}
	}
	return r
}

// FromRecords rebuilds a document from its flattened form. Exactly one record
// must have no parent. Rebuilding emits no notifications.
func FromRecords(records []Record, selection []string, opts ...Option) (*Document, error) {
	d := NewDocument(opts...)
	delete(d.nodes, d.root)
	d.root = ""

	for _, r := range records {
		if _, dup := d.nodes[r.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", r.ID)
		}
		n := &Node{ID: r.ID, Name: r.Name, Type: r.Type, Geometry: r.Geometry, Text: r.Text}
		if len(r.Data) > 0 {
			n.data = make(map[string]string, len(r.Data))
			for k, v := range r.Data {
				n.data[k] = v
			}
		}
		d.nodes[n.ID] = n
		if r.ParentID == "" {
			if d.root != "" {
				return nil, fmt.Errorf("multiple root records: %q and %q", d.root, r.ID)
			}
			d.root = r.ID
		}
	}
	if d.root == "" {
		return nil, fmt.Errorf("no root record")
	}

	ordered := append([]Record(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	for _, r := range ordered {
		if r.ParentID == "" {
			continue
		}
		parent, ok := d.nodes[r.ParentID]
		if !ok {
			return nil, fmt.Errorf("node %q: parent %q: %w", r.ID, r.ParentID, ErrUnknownNode)
		}
		d.link(parent, d.nodes[r.ID])
	}

	for _, id := range selection {
		if _, ok := d.nodes[id]; ok {
			d.selection = append(d.selection, id)
		}
	}
	return d, nil
}
