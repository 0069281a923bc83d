package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"hotspotter/internal/export"
	"hotspotter/internal/query"
	"hotspotter/internal/reactor"
	"hotspotter/internal/scene"
	"hotspotter/internal/selection"
	"hotspotter/internal/snapshot"

	"github.com/go-chi/chi/v5"
)

// StateResponse is returned by every endpoint that reads or changes the
// document.
type StateResponse struct {
	Message selection.Result `json:"message"`
	Notices []string         `json:"notices,omitempty"`
	// Node is the id of the node a request created, if any.
	Node string `json:"node,omitempty"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type selectRequest struct {
	IDs   []string `json:"ids"`
	Where string   `json:"where"`
}

type moveRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond(w, http.StatusOK, "")
}

// GET /api/export?format=json|css&scope=selection|all
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := s.format
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := export.ParseFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		format = parsed
	}

	s.mu.Lock()
	var (
		snap *snapshot.Snapshot
		err  error
	)
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "selection":
		snap, err = s.session.SelectionSnapshot()
	case "all":
		snap, err = s.session.DocumentSnapshot()
	default:
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown scope %q", scope))
		return
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	out, err := s.enc.Encode(format, snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if format == export.FormatCSS {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, out)
}

// PUT /api/selection
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.IDs) > 0 && req.Where != "" {
		writeError(w, http.StatusBadRequest, errors.New("ids and where are mutually exclusive"))
		return
	}

	var filter *query.Filter
	if req.Where != "" {
		f, err := query.Compile(req.Where)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter = f
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []*scene.Node
	if filter != nil {
		matched, err := query.Select(s.doc, filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		nodes = matched
	}
	for _, id := range req.IDs {
		n, ok := s.doc.Node(id)
		if !ok || !s.doc.Attached(n) {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", scene.ErrUnknownNode, id))
			return
		}
		nodes = append(nodes, n)
	}

	s.doc.SetSelection(nodes...)
	s.commit(w, r, http.StatusOK, "")
}

// POST /api/hotspots
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, reactor.CommandCreateHotspot, http.StatusCreated)
}

// PUT /api/hotspots/selected
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, reactor.CommandRenameHotspot, http.StatusOK)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, typ reactor.CommandType, status int) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Dispatch(reactor.Command{Type: typ, Name: req.Name}); err != nil {
		s.fail(w, err)
		return
	}

	var created string
	if typ == reactor.CommandCreateHotspot {
		if sel := s.doc.Selection(); len(sel) == 1 {
			created = sel[0].ID
		}
	}
	s.commit(w, r, status, created)
}

// POST /api/nodes/{id}/duplicate
func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.lookup(w, r)
	if !ok {
		return
	}
	clone, err := s.doc.Duplicate(n)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.commit(w, r, http.StatusCreated, clone.ID)
}

// PATCH /api/nodes/{id}
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.X == nil && req.Y == nil {
		writeError(w, http.StatusBadRequest, errors.New("x or y required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if n == s.doc.Root() {
		s.fail(w, scene.ErrRootNode)
		return
	}
	x, y := n.X, n.Y
	if req.X != nil {
		x = *req.X
	}
	if req.Y != nil {
		y = *req.Y
	}
	s.doc.SetPosition(n, x, y)
	s.commit(w, r, http.StatusOK, "")
}

// DELETE /api/nodes/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := s.doc.Remove(n); err != nil {
		s.fail(w, err)
		return
	}
	s.commit(w, r, http.StatusOK, "")
}

// lookup resolves the {id} URL parameter to an attached node. Callers hold mu.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*scene.Node, bool) {
	id := chi.URLParam(r, "id")
	n, ok := s.doc.Node(id)
	if !ok || !s.doc.Attached(n) {
		s.fail(w, fmt.Errorf("%w: %s", scene.ErrUnknownNode, id))
		return nil, false
	}
	return n, true
}

// commit persists the document and writes the resulting state. Callers hold mu.
func (s *Server) commit(w http.ResponseWriter, r *http.Request, status int, node string) {
	if s.save != nil {
		if err := s.save(r.Context(), s.doc); err != nil {
			s.logger.Error("Failed to save document", "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	s.respond(w, status, node)
}

// respond recomputes the selection state from the document and writes it.
// Deletions are not pushed by the session, so the last message may be stale.
// Callers hold mu.
func (s *Server) respond(w http.ResponseWriter, status int, node string) {
	s.session.Refresh()
	writeJSON(w, status, StateResponse{
		Message: s.out.last,
		Notices: s.out.take(),
		Node:    node,
	})
}

// fail writes err along with any notification it raised. Callers hold mu.
func (s *Server) fail(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if notices := s.out.take(); len(notices) > 0 {
		body["notices"] = notices
	} else if text, ok := reactor.UserMessage(err); ok {
		body["notices"] = []string{text}
	}
	writeJSON(w, statusFor(err), body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
