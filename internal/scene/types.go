package scene

type NodeType string

const (
	NodeTypePage      NodeType = "PAGE"
	NodeTypeFrame     NodeType = "FRAME"
	NodeTypeInstance  NodeType = "INSTANCE"
	NodeTypeComponent NodeType = "COMPONENT"
	NodeTypeText      NodeType = "TEXT"
	NodeTypeOther     NodeType = "OTHER"
)

// ParseNodeType maps a type name onto a known NodeType. Unknown names become OTHER.
func ParseNodeType(s string) NodeType {
	switch t := NodeType(s); t {
	case NodeTypePage, NodeTypeFrame, NodeTypeInstance, NodeTypeComponent, NodeTypeText:
		return t
	default:
		return NodeTypeOther
	}
}

// Geometry is expressed in the parent's coordinate frame.
type Geometry struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

type ChangeType string

const (
	ChangeCreate   ChangeType = "CREATE"
	ChangeDelete   ChangeType = "DELETE"
	ChangeProperty ChangeType = "PROPERTY_CHANGE"
)

// Change describes one discrete edit. Properties is only set for PROPERTY_CHANGE.
type Change struct {
	Type       ChangeType
	NodeID     string
	Properties []string
}

// HasProperty reports whether any of names is among the changed properties.
func (c Change) HasProperty(names ...string) bool {
	for _, p := range c.Properties {
		for _, n := range names {
			if p == n {
				return true
			}
		}
	}
	return false
}

// DocumentChange groups the changes of a single edit, in the order they happened.
type DocumentChange struct {
	Changes []Change
}

// Last returns the most recent change of the edit.
func (e DocumentChange) Last() (Change, bool) {
	if len(e.Changes) == 0 {
		return Change{}, false
	}
	return e.Changes[len(e.Changes)-1], true
}

// Property names carried by PROPERTY_CHANGE.
const (
	PropX          = "x"
	PropY          = "y"
	PropWidth      = "width"
	PropHeight     = "height"
	PropName       = "name"
	PropCharacters = "characters"
	PropPluginData = "pluginData"
	PropParent     = "parent"
)
