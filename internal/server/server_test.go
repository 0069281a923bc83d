package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hotspotter/internal/export"
	"hotspotter/internal/scene"
	"hotspotter/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	doc   *scene.Document
	frame *scene.Node
	saves int
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	d := scene.NewDocument()
	frame := d.NewNode(scene.NodeTypeFrame, "Living Room", scene.Geometry{Width: 200, Height: 100})
	require.NoError(t, d.AppendChild(d.Root(), frame))

	ts := &testServer{doc: d, frame: frame}
	opts = append([]Option{WithSaveFunc(func(context.Context, *scene.Document) error {
		ts.saves++
		return nil
	})}, opts...)
	srv, err := New(d, opts...)
	require.NoError(t, err)
	ts.Server = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeState(t *testing.T, body []byte) StateResponse {
	t.Helper()
	var st StateResponse
	require.NoError(t, json.Unmarshal(body, &st))
	return st
}

func TestServer_State(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, selection.NoSelection, decodeState(t, body).Message.Classification)

	resp, _ = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_CreateAndRename(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, selection.NoHotspotsSelected, decodeState(t, body).Message.Classification)

	resp, body = ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: "Door"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	st := decodeState(t, body)
	assert.Equal(t, selection.OneHotspotSelected, st.Message.Classification)
	require.NotNil(t, st.Message.Hotspot)
	assert.Equal(t, "door", st.Message.Hotspot.ID)
	assert.NotEmpty(t, st.Node)
	_, ok := ts.doc.Node(st.Node)
	assert.True(t, ok)

	resp, body = ts.do(t, http.MethodPut, "/api/hotspots/selected", nameRequest{Name: "Front Door"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "front-door", decodeState(t, body).Message.Hotspot.ID)
	assert.Equal(t, 3, ts.saves)

	t.Run("Duplicate name conflicts", func(t *testing.T) {
		ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}})
		resp, body := ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: "Front Door"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, string(body), "Hotspot with the same name already exists")
	})

	t.Run("Empty name is a bad request", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: " "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("No frame selected", func(t *testing.T) {
		ts.do(t, http.MethodPut, "/api/selection", selectRequest{})
		resp, body := ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: "Window"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, string(body), "Please select a frame to add a hotspot to")
	})
}

func TestServer_SelectWhere(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}})
	ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: "Door"})
	ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}})
	ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: "Window"})

	resp, body := ts.do(t, http.MethodPut, "/api/selection", selectRequest{Where: "hotspot"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, selection.MultipleHotspotsSelected, decodeState(t, body).Message.Classification)

	resp, _ = ts.do(t, http.MethodPut, "/api/selection", selectRequest{Where: "x +"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{"nope"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}, Where: "hotspot"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_NodeEdits(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}})
	_, body := ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: "Door-1"})
	door := decodeState(t, body).Node

	x, y := 50.0, 25.0
	resp, body := ts.do(t, http.MethodPatch, "/api/nodes/"+door, moveRequest{X: &x, Y: &y})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hs := decodeState(t, body).Message.Snapshot.Frames[0].Hotspots[0]
	assert.Equal(t, 0.25, hs.Left)
	assert.Equal(t, 0.25, hs.Top)

	resp, body = ts.do(t, http.MethodPost, "/api/nodes/"+door+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	st := decodeState(t, body)
	require.Len(t, st.Message.Snapshot.Frames[0].Hotspots, 2)
	assert.Equal(t, "Door-2", st.Message.Snapshot.Frames[0].Hotspots[1].Name)

	resp, body = ts.do(t, http.MethodDelete, "/api/nodes/"+st.Node, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, ok := ts.doc.Node(st.Node)
	assert.False(t, ok)

	after := decodeState(t, body).Message.Snapshot.Frames[0].Hotspots
	require.Len(t, after, 1, "the removed copy is gone from the response")
	assert.Equal(t, "Door-1", after[0].Name)
	assert.Equal(t, door, after[0].NodeRef)

	_, body = ts.do(t, http.MethodGet, "/api/state", nil)
	assert.Len(t, decodeState(t, body).Message.Snapshot.Frames[0].Hotspots, 1)

	t.Run("Unknown node", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodDelete, "/api/nodes/missing", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Root cannot be removed", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodDelete, "/api/nodes/"+ts.doc.Root().ID, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Move needs a coordinate", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPatch, "/api/nodes/"+door, moveRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Export(t *testing.T) {
	ts := newTestServer(t, WithEncoder(export.NewEncoder(export.DefaultOptions), export.FormatJSON))
	ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}})
	ts.do(t, http.MethodPost, "/api/hotspots", nameRequest{Name: "Door"})

	resp, body := ts.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap, err := export.DecodeJSON(body)
	require.NoError(t, err)
	require.Len(t, snap.Frames, 1)
	assert.Equal(t, "living-room", snap.Frames[0].ID)

	resp, body = ts.do(t, http.MethodGet, "/api/export?format=css", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/css"))
	assert.Contains(t, string(body), `.frame[data-id="living-room"] .hotspot[data-id="door"]`)

	ts.do(t, http.MethodPut, "/api/selection", selectRequest{})
	_, body = ts.do(t, http.MethodGet, "/api/export", nil)
	snap, err = export.DecodeJSON(body)
	require.NoError(t, err)
	assert.Empty(t, snap.Frames, "nothing selected")

	_, body = ts.do(t, http.MethodGet, "/api/export?scope=all", nil)
	snap, err = export.DecodeJSON(body)
	require.NoError(t, err)
	assert.Len(t, snap.Frames, 1)

	resp, _ = ts.do(t, http.MethodGet, "/api/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/api/export?scope=page", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_SaveFailure(t *testing.T) {
	ts := newTestServer(t, WithSaveFunc(func(context.Context, *scene.Document) error {
		return errors.New("disk full")
	}))
	resp, body := ts.do(t, http.MethodPut, "/api/selection", selectRequest{IDs: []string{ts.frame.ID}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "disk full")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(scene.ErrUnknownNode))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
