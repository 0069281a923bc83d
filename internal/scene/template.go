package scene

// LabelName names the text child carrying a marker's visible label.
const LabelName = "label"

// EnsureTemplate returns the page-level component called name, creating a
// square marker component of the given size when none exists yet.
func (d *Document) EnsureTemplate(name string, size float64) (*Node, error) {
	root := d.Root()
	if existing := d.FindChild(root, func(n *Node) bool {
		return n.Type == NodeTypeComponent && n.Name == name
	}); existing != nil {
		return existing, nil
	}

	component := d.NewNode(NodeTypeComponent, name, Geometry{Width: size, Height: size})
	d.link(component, d.NewNode(NodeTypeOther, "ellipse", Geometry{Width: size, Height: size}))
	inset := size / 6
	d.link(component, d.NewNode(NodeTypeText, LabelName, Geometry{
		X:      inset,
		Y:      inset,
		Width:  size - 2*inset,
		Height: size - 2*inset,
	}))

	if err := d.AppendChild(root, component); err != nil {
		return nil, err
	}
	return component, nil
}

// Instantiate creates a detached INSTANCE of the template, children included.
func (d *Document) Instantiate(template *Node) *Node {
	inst := d.NewNode(NodeTypeInstance, template.Name, Geometry{
		Width:  template.Width,
		Height: template.Height,
	})
	for _, c := range d.Children(template) {
		d.link(inst, d.cloneTree(c))
	}
	return inst
}
