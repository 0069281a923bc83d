package reactor

import (
	"testing"

	"hotspotter/internal/hotspot"
	"hotspotter/internal/scene"
	"hotspotter/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	doc   *scene.Document
	frame *scene.Node
	rec   *Recorder
	s     *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d := scene.NewDocument()
	frame := d.NewNode(scene.NodeTypeFrame, "Home", scene.Geometry{Width: 200, Height: 100})
	require.NoError(t, d.AppendChild(d.Root(), frame))
	rec := &Recorder{}
	s := NewSession(d, rec)
	require.NoError(t, s.Start())
	t.Cleanup(s.Close)
	return &harness{doc: d, frame: frame, rec: rec, s: s}
}

func (h *harness) last(t *testing.T) selection.Result {
	t.Helper()
	msg, ok := h.rec.Last()
	require.True(t, ok, "no message posted")
	return msg
}

func (h *harness) annotation(t *testing.T, n *scene.Node) hotspot.Annotation {
	t.Helper()
	a, err := hotspot.ReadAnnotation(h.doc, n)
	require.NoError(t, err)
	return a
}

func labelText(d *scene.Document, n *scene.Node) string {
	if l := d.FindChild(n, func(c *scene.Node) bool { return c.Name == scene.LabelName }); l != nil {
		return l.Text
	}
	return ""
}

func TestSession_SelectionChangesArePushed(t *testing.T) {
	h := newHarness(t)

	h.doc.SetSelection(h.frame)
	assert.Equal(t, selection.NoHotspotsSelected, h.last(t).Classification)

	h.doc.SetSelection()
	msg := h.last(t)
	assert.Equal(t, selection.NoSelection, msg.Classification)
	assert.Nil(t, msg.Snapshot)
}

func TestSession_CreateHotspot(t *testing.T) {
	h := newHarness(t)
	h.doc.SetSelection(h.frame)

	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))

	msg := h.last(t)
	assert.Equal(t, selection.OneHotspotSelected, msg.Classification)
	require.NotNil(t, msg.Hotspot)
	assert.Equal(t, hotspot.Annotation{ID: "door", Name: "Door"}, *msg.Hotspot)
	require.Len(t, msg.Snapshot.Frames, 1)
	assert.Equal(t, 0.5, msg.Snapshot.Frames[0].Hotspots[0].Left)

	created := h.doc.Selection()[0]
	assert.Equal(t, "Door", h.annotation(t, created).Name, "mediated creation is not suffixed")
	assert.Equal(t, "1", labelText(h.doc, created))

	t.Run("Duplicate name is rejected without mutation", func(t *testing.T) {
		h.doc.SetSelection(h.frame)
		before := len(h.doc.Children(h.frame))
		err := h.s.Dispatch(CreateHotspot("Door"))
		assert.ErrorIs(t, err, hotspot.ErrDuplicateName)
		assert.Len(t, h.doc.Children(h.frame), before)
		assert.Equal(t, "Hotspot with the same name already exists", h.rec.Notices[len(h.rec.Notices)-1])
	})

	t.Run("No frame selected", func(t *testing.T) {
		h.doc.SetSelection()
		err := h.s.Dispatch(CreateHotspot("Window"))
		assert.ErrorIs(t, err, hotspot.ErrNoFrameSelected)
		assert.Equal(t, "Please select a frame to add a hotspot to", h.rec.Notices[len(h.rec.Notices)-1])
		assert.Equal(t, selection.NoSelection, h.last(t).Classification)
	})
}

func TestSession_RenameHotspot(t *testing.T) {
	h := newHarness(t)
	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))

	require.NoError(t, h.s.Dispatch(RenameHotspot("Back Door")))
	msg := h.last(t)
	require.NotNil(t, msg.Hotspot)
	assert.Equal(t, hotspot.Annotation{ID: "back-door", Name: "Back Door"}, *msg.Hotspot)

	require.NoError(t, h.s.Dispatch(CreateHotspot("Window")))
	h.doc.SetSelection(h.doc.FindAll(h.frame, h.s.ids.Navigator().IsHotspot)...)
	assert.Equal(t, selection.MultipleHotspotsSelected, h.last(t).Classification)
	assert.ErrorIs(t, h.s.Dispatch(RenameHotspot("Both")), hotspot.ErrAmbiguousSelection)
}

func TestSession_DuplicatedHotspotIsReconciled(t *testing.T) {
	h := newHarness(t)
	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door-1")))
	door := h.doc.Selection()[0]
	posted := len(h.rec.Messages)

	clone, err := h.doc.Duplicate(door)
	require.NoError(t, err)

	assert.Equal(t, "Door-2", h.annotation(t, clone).Name)
	assert.Equal(t, "hotspot/Door-2", clone.Name)
	assert.Equal(t, "2", labelText(h.doc, clone))
	assert.Equal(t, "Door-1", h.annotation(t, door).Name)
	assert.Greater(t, len(h.rec.Messages), posted, "reconciliation triggers a recompute")

	names := h.last(t).Snapshot.Frames[0].Hotspots
	require.Len(t, names, 2)
	assert.Equal(t, "Door-1", names[0].Name)
	assert.Equal(t, "Door-2", names[1].Name)
}

func TestSession_MovesRecompute(t *testing.T) {
	h := newHarness(t)
	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))
	door := h.doc.Selection()[0]

	h.doc.SetPosition(door, 50, 25)
	hs := h.last(t).Snapshot.Frames[0].Hotspots[0]
	assert.Equal(t, 0.25, hs.Left)
	assert.Equal(t, 0.25, hs.Top)

	posted := len(h.rec.Messages)
	h.doc.Resize(door, 10, 10)
	assert.Len(t, h.rec.Messages, posted, "size changes are ignored")
}

func TestSession_DeleteDoesNotRenumber(t *testing.T) {
	h := newHarness(t)
	var created []*scene.Node
	for _, name := range []string{"A", "B", "C"} {
		h.doc.SetSelection(h.frame)
		require.NoError(t, h.s.Dispatch(CreateHotspot(name)))
		created = append(created, h.doc.Selection()[0])
	}

	h.doc.SetSelection(created[0])
	require.NoError(t, h.doc.Remove(created[0]))
	assert.Equal(t, "2", labelText(h.doc, created[1]))
	assert.Equal(t, "3", labelText(h.doc, created[2]))
	assert.Equal(t, selection.NoSelection, h.last(t).Classification)
}

func TestSession_OnlyLastChangeIsHandled(t *testing.T) {
	h := newHarness(t)
	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))
	door := h.doc.Selection()[0]

	var clone *scene.Node
	h.doc.Edit(func() {
		var err error
		clone, err = h.doc.Duplicate(door)
		require.NoError(t, err)
		h.doc.SetName(h.frame, "Hall")
	})
	assert.Equal(t, "Door", h.annotation(t, clone).Name, "create was not the last change of the edit")
}

func TestSession_CloseUnsubscribes(t *testing.T) {
	h := newHarness(t)
	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))
	door := h.doc.Selection()[0]

	h.s.Close()
	posted := len(h.rec.Messages)
	clone, err := h.doc.Duplicate(door)
	require.NoError(t, err)
	assert.Equal(t, "Door", h.annotation(t, clone).Name)
	assert.Len(t, h.rec.Messages, posted)
}

func TestSession_MalformedAnnotationIsNotified(t *testing.T) {
	h := newHarness(t)
	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))
	door := h.doc.Selection()[0]
	posted := len(h.rec.Messages)

	h.doc.SetPluginData(door, hotspot.AnnotationKey, "not json")
	h.doc.SetSelection(h.frame)

	assert.Len(t, h.rec.Messages, posted)
	assert.Equal(t, "Hotspot data could not be read", h.rec.Notices[len(h.rec.Notices)-1])
}

func TestSession_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	err := h.s.Dispatch(Command{Type: "RESIZE"})
	assert.Error(t, err)
	assert.Empty(t, h.rec.Notices)
}

func TestSession_Snapshots(t *testing.T) {
	h := newHarness(t)

	snap, err := h.s.SelectionSnapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Frames)

	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))

	empty := h.doc.NewNode(scene.NodeTypeFrame, "Empty", scene.Geometry{Width: 10, Height: 10})
	require.NoError(t, h.doc.AppendChild(h.doc.Root(), empty))
	h.doc.SetSelection(empty)

	snap, err = h.s.SelectionSnapshot()
	require.NoError(t, err)
	require.Len(t, snap.Frames, 1)
	assert.Equal(t, "empty", snap.Frames[0].ID)
	assert.Zero(t, snap.HotspotCount())

	snap, err = h.s.DocumentSnapshot()
	require.NoError(t, err)
	require.Len(t, snap.Frames, 1)
	assert.Equal(t, "home", snap.Frames[0].ID)
	assert.Equal(t, 1, snap.HotspotCount())
}

func TestSession_TemplateIsPreparedOnStart(t *testing.T) {
	h := newHarness(t)
	templates := h.doc.FindAllByType(h.doc.Root(), scene.NodeTypeComponent)
	require.Len(t, templates, 1)
	assert.Equal(t, hotspot.DefaultMarker.Name, templates[0].Name)

	var created []string
	stop := h.doc.OnDocumentChange(func(ev scene.DocumentChange) {
		for _, c := range ev.Changes {
			if c.Type == scene.ChangeCreate {
				created = append(created, c.NodeID)
			}
		}
	})
	defer stop()

	h.doc.SetSelection(h.frame)
	require.NoError(t, h.s.Dispatch(CreateHotspot("Door")))
	assert.Equal(t, []string{h.doc.Selection()[0].ID}, created, "only the marker is inserted")
	assert.Len(t, h.doc.FindAllByType(h.doc.Root(), scene.NodeTypeComponent), 1)
}

// dispatchingPresenter issues a command from inside Post.
type dispatchingPresenter struct {
	Recorder
	s   *Session
	err error
}

func (p *dispatchingPresenter) Post(msg selection.Result) {
	p.Recorder.Post(msg)
	if p.s != nil && p.err == nil {
		p.err = p.s.Dispatch(CreateHotspot("Nested"))
	}
}

func TestSession_ReentrantDispatchIsRejected(t *testing.T) {
	d := scene.NewDocument()
	frame := d.NewNode(scene.NodeTypeFrame, "Home", scene.Geometry{Width: 200, Height: 100})
	require.NoError(t, d.AppendChild(d.Root(), frame))

	out := &dispatchingPresenter{}
	s := NewSession(d, out)
	require.NoError(t, s.Start())
	t.Cleanup(s.Close)
	out.s = s

	d.SetSelection(frame)
	assert.ErrorIs(t, out.err, ErrReentrantDispatch)
	assert.Empty(t, hotspot.NewNavigator(d).Hotspots(frame), "the nested command never ran")
}
