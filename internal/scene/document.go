package scene

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDetached    = errors.New("node is not attached to the document")
	ErrRootNode    = errors.New("operation not allowed on the root node")
	ErrCycle       = errors.New("node cannot become its own descendant")
	ErrUnknownNode = errors.New("unknown node")
)

// Node is a vertex of the document tree. Hierarchy is kept as ids so the
// Document arena owns every node; mutate through Document methods so that
// listeners observe the edit.
type Node struct {
	ID   string
	Name string
	Type NodeType
	Geometry

	// Text holds the characters of TEXT nodes.
	Text string

	parent   string
	children []string
	data     map[string]string
}

// Document is an in-memory scene: an arena of nodes indexed by id, the current
// selection and the viewport focus. It is single-threaded.
type Document struct {
	nodes     map[string]*Node
	root      string
	selection []string
	viewport  []string
	newID     func() string

	listeners
}

// Option configures a Document.
type Option func(*Document)

// WithIDGenerator replaces the default UUID node id generator.
func WithIDGenerator(gen func() string) Option {
	return func(d *Document) { d.newID = gen }
}

// NewDocument creates a document holding a single empty page.
func NewDocument(opts ...Option) *Document {
	d := &Document{
		nodes: make(map[string]*Node),
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(d)
	}
	root := &Node{ID: d.newID(), Name: "Page 1", Type: NodeTypePage}
	d.nodes[root.ID] = root
	d.root = root.ID
	return d
}

// Root returns the page node.
func (d *Document) Root() *Node {
	return d.nodes[d.root]
}

// Node looks up a node by id. Detached nodes are found too.
func (d *Document) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Len returns the number of nodes reachable from the root, root included.
func (d *Document) Len() int {
	return len(d.FindAll(d.Root(), nil)) + 1
}

// Parent returns the containing node, or nil at the root or for detached nodes.
func (d *Document) Parent(n *Node) *Node {
	if n == nil || n.parent == "" {
		return nil
	}
	return d.nodes[n.parent]
}

// Children returns the ordered direct children of n.
func (d *Document) Children(n *Node) []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.children))
	for _, id := range n.children {
		if c, ok := d.nodes[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// FindChild returns the first direct child of n accepted by match.
func (d *Document) FindChild(n *Node, match func(*Node) bool) *Node {
	for _, c := range d.Children(n) {
		if match(c) {
			return c
		}
	}
	return nil
}

// FindAll walks the subtree under n in pre-order, n excluded, and returns the
// nodes accepted by match. A nil match accepts everything.
func (d *Document) FindAll(n *Node, match func(*Node) bool) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range d.Children(cur) {
			if match == nil || match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// FindAllByType returns the descendants of n whose type is one of types.
func (d *Document) FindAllByType(n *Node, types ...NodeType) []*Node {
	return d.FindAll(n, func(c *Node) bool {
		for _, t := range types {
			if c.Type == t {
				return true
			}
		}
		return false
	})
}

// Attached reports whether n is reachable from the root.
func (d *Document) Attached(n *Node) bool {
	for cur := n; cur != nil; cur = d.Parent(cur) {
		if cur.ID == d.root {
			return true
		}
	}
	return false
}

// NewNode allocates a detached node. It becomes part of the tree, and is
// announced as created, once appended.
func (d *Document) NewNode(typ NodeType, name string, geom Geometry) *Node {
	n := &Node{ID: d.newID(), Name: name, Type: typ, Geometry: geom}
	d.nodes[n.ID] = n
	return n
}

// AppendChild attaches child as the last child of parent. A detached child
// emits CREATE; an attached one is moved and emits a parent PROPERTY_CHANGE.
func (d *Document) AppendChild(parent, child *Node) error {
	if parent == nil || child == nil {
		return ErrUnknownNode
	}
	if child.ID == d.root {
		return ErrRootNode
	}
	for cur := parent; cur != nil; cur = d.Parent(cur) {
		if cur.ID == child.ID {
			return ErrCycle
		}
	}

	wasAttached := d.Attached(child)
	if old := d.Parent(child); old != nil {
		old.children = removeID(old.children, child.ID)
	}
	d.link(parent, child)

	if !d.Attached(child) {
		return nil
	}
	if wasAttached {
		d.emit(Change{Type: ChangeProperty, NodeID: child.ID, Properties: []string{PropParent}})
	} else {
		d.emit(Change{Type: ChangeCreate, NodeID: child.ID})
	}
	return nil
}

// Remove deletes n and its subtree. Removed nodes leave the selection.
func (d *Document) Remove(n *Node) error {
	if n == nil {
		return ErrUnknownNode
	}
	if n.ID == d.root {
		return ErrRootNode
	}
	attached := d.Attached(n)
	if p := d.Parent(n); p != nil {
		p.children = removeID(p.children, n.ID)
	}

	gone := map[string]struct{}{n.ID: {}}
	for _, c := range d.FindAll(n, nil) {
		gone[c.ID] = struct{}{}
	}
	for id := range gone {
		delete(d.nodes, id)
	}
	n.parent = ""

	if !attached {
		return nil
	}
	d.emit(Change{Type: ChangeDelete, NodeID: n.ID})

	kept := d.selection[:0:0]
	for _, id := range d.selection {
		if _, removed := gone[id]; !removed {
			kept = append(kept, id)
		}
	}
	if len(kept) != len(d.selection) {
		d.selection = kept
		d.emitSelection()
	}
	return nil
}

// SetPosition moves n within its parent's coordinate frame.
func (d *Document) SetPosition(n *Node, x, y float64) {
	var props []string
	if n.X != x {
		n.X = x
		props = append(props, PropX)
	}
	if n.Y != y {
		n.Y = y
		props = append(props, PropY)
	}
	d.emitProperties(n, props)
}

// Resize changes the size of n.
func (d *Document) Resize(n *Node, width, height float64) {
	var props []string
	if n.Width != width {
		n.Width = width
		props = append(props, PropWidth)
	}
	if n.Height != height {
		n.Height = height
		props = append(props, PropHeight)
	}
	d.emitProperties(n, props)
}

// SetName renames n.
func (d *Document) SetName(n *Node, name string) {
	if n.Name == name {
		return
	}
	n.Name = name
	d.emitProperties(n, []string{PropName})
}

// SetText replaces the characters of a text node.
func (d *Document) SetText(n *Node, text string) {
	if n.Text == text {
		return
	}
	n.Text = text
	d.emitProperties(n, []string{PropCharacters})
}

// PluginData reads an annotation value; missing keys read as "".
func (d *Document) PluginData(n *Node, key string) string {
	if n == nil {
		return ""
	}
	return n.data[key]
}

// SetPluginData writes an annotation value. An empty value deletes the key.
func (d *Document) SetPluginData(n *Node, key, value string) {
	if n.data[key] == value {
		return
	}
	if value == "" {
		delete(n.data, key)
	} else {
		if n.data == nil {
			n.data = make(map[string]string)
		}
		n.data[key] = value
	}
	d.emitProperties(n, []string{PropPluginData})
}

// PluginDataKeys lists the annotation keys set on n.
func (d *Document) PluginDataKeys(n *Node) []string {
	keys := make([]string, 0, len(n.data))
	for k := range n.data {
		keys = append(keys, k)
	}
	return sortedStrings(keys)
}

// Selection returns the selected nodes in selection order.
func (d *Document) Selection() []*Node {
	out := make([]*Node, 0, len(d.selection))
	for _, id := range d.selection {
		if n, ok := d.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// SetSelection replaces the selection. Listeners are notified when it differs.
func (d *Document) SetSelection(nodes ...*Node) {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			ids = append(ids, n.ID)
		}
	}
	if equalIDs(ids, d.selection) {
		return
	}
	d.selection = ids
	d.emitSelection()
}

// ScrollAndZoomIntoView focuses the viewport on nodes.
func (d *Document) ScrollAndZoomIntoView(nodes ...*Node) {
	d.viewport = d.viewport[:0]
	for _, n := range nodes {
		d.viewport = append(d.viewport, n.ID)
	}
}

// Viewport returns the ids the viewport was last focused on.
func (d *Document) Viewport() []string {
	return append([]string(nil), d.viewport...)
}

// Duplicate clones n and its subtree, annotations included, right after n
// in the same parent. A single CREATE is emitted for the clone.
func (d *Document) Duplicate(n *Node) (*Node, error) {
	if n == nil {
		return nil, ErrUnknownNode
	}
	if n.ID == d.root {
		return nil, ErrRootNode
	}
	parent := d.Parent(n)
	if parent == nil {
		return nil, fmt.Errorf("duplicate %s: %w", n.ID, ErrDetached)
	}

	clone := d.cloneTree(n)
	clone.parent = parent.ID
	idx := indexOf(parent.children, n.ID)
	parent.children = append(parent.children[:idx+1], append([]string{clone.ID}, parent.children[idx+1:]...)...)

	if d.Attached(clone) {
		d.emit(Change{Type: ChangeCreate, NodeID: clone.ID})
	}
	return clone, nil
}

func (d *Document) cloneTree(src *Node) *Node {
	dst := d.NewNode(src.Type, src.Name, src.Geometry)
	dst.Text = src.Text
	if len(src.data) > 0 {
		dst.data = make(map[string]string, len(src.data))
		for k, v := range src.data {
			dst.data[k] = v
		}
	}
	for _, c := range d.Children(src) {
		d.link(dst, d.cloneTree(c))
	}
	return dst
}

// link attaches without notifying.
func (d *Document) link(parent, child *Node) {
	child.parent = parent.ID
	parent.children = append(parent.children, child.ID)
}

func (d *Document) emitProperties(n *Node, props []string) {
	if len(props) == 0 || !d.Attached(n) {
		return
	}
	d.emit(Change{Type: ChangeProperty, NodeID: n.ID, Properties: props})
}

func removeID(ids []string, id string) []string {
	if i := indexOf(ids, id); i >= 0 {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
