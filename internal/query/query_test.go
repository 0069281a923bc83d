package query

import (
	"testing"

	"hotspotter/internal/hotspot"
	"hotspotter/internal/scene"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T) (*scene.Document, map[string]*scene.Node) {
	t.Helper()
	d := scene.NewDocument()
	nodes := map[string]*scene.Node{}
	add := func(parent *scene.Node, key string, typ scene.NodeType, name string, g scene.Geometry) *scene.Node {
		n := d.NewNode(typ, name, g)
		require.NoError(t, d.AppendChild(parent, n))
		nodes[key] = n
		return n
	}

	living := add(d.Root(), "living", scene.NodeTypeFrame, "Living Room", scene.Geometry{Width: 200, Height: 100})
	kitchen := add(d.Root(), "kitchen", scene.NodeTypeFrame, "Kitchen", scene.Geometry{X: 300, Width: 100, Height: 100})
	door := add(living, "door", scene.NodeTypeInstance, "", scene.Geometry{X: 50, Y: 25})
	hotspot.Tag(d, door, "Door")
	window := add(kitchen, "window", scene.NodeTypeInstance, "", scene.Geometry{X: 150, Y: 10})
	hotspot.Tag(d, window, "Window")
	add(living, "sofa", scene.NodeTypeOther, "Sofa", scene.Geometry{X: 120, Y: 60})
	return d, nodes
}

func TestCompile(t *testing.T) {
	_, err := Compile("   ")
	assert.ErrorIs(t, err, ErrEmptyExpression)

	_, err = Compile("x + 1")
	assert.Error(t, err, "non-boolean expressions are rejected")

	_, err = Compile("colour == 'red'")
	assert.Error(t, err, "unknown variables are rejected")

	f, err := Compile(" hotspot ")
	require.NoError(t, err)
	assert.Equal(t, "hotspot", f.String())
}

func TestSelect(t *testing.T) {
	d, nodes := fixture(t)

	tests := []struct {
		expr string
		want []string
	}{
		{`hotspot`, []string{"door", "window"}},
		{`type == "FRAME"`, []string{"living", "kitchen"}},
		{`frame == "Living Room" && !hotspot && type != "FRAME"`, []string{"sofa"}},
		{`hotspot && x > 100`, []string{"window"}},
		{`label == "Door"`, []string{"door"}},
		{`name startsWith "hotspot/"`, []string{"door", "window"}},
		{`frame == "Attic"`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := Select(d, f)
			require.NoError(t, err)

			var want []*scene.Node
			for _, key := range tt.want {
				want = append(want, nodes[key])
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestNewEnv(t *testing.T) {
	d, nodes := fixture(t)

	env := NewEnv(d, nodes["door"])
	assert.True(t, env.Hotspot)
	assert.Equal(t, "Door", env.Label)
	assert.Equal(t, "Living Room", env.Frame)
	assert.Equal(t, "INSTANCE", env.Type)

	env = NewEnv(d, nodes["kitchen"])
	assert.False(t, env.Hotspot)
	assert.Equal(t, "Kitchen", env.Frame)
	assert.Equal(t, 300.0, env.X)
}
