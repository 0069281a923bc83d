// Package server exposes a document session over HTTP. Every request runs
// under one lock, so the session sees commands and edits one at a time.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"hotspotter/internal/export"
	"hotspotter/internal/hotspot"
	"hotspotter/internal/reactor"
	"hotspotter/internal/scene"
	"hotspotter/internal/selection"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SaveFunc persists the document after a successful mutation.
type SaveFunc func(ctx context.Context, doc *scene.Document) error

type Server struct {
	mu      sync.Mutex
	doc     *scene.Document
	session *reactor.Session
	out     *outbox
	enc     *export.Encoder
	format  export.Format
	save    SaveFunc
	logger  *slog.Logger
	marker  hotspot.MarkerTemplate
	router  *chi.Mux
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithEncoder(enc *export.Encoder, format export.Format) Option {
	return func(s *Server) {
		s.enc = enc
		s.format = format
	}
}

func WithMarker(m hotspot.MarkerTemplate) Option {
	return func(s *Server) { s.marker = m }
}

func WithSaveFunc(fn SaveFunc) Option {
	return func(s *Server) { s.save = fn }
}

// New wires a session to doc and pushes the initial selection state.
func New(doc *scene.Document, opts ...Option) (*Server, error) {
	s := &Server{
		doc:    doc,
		out:    &outbox{},
		enc:    export.NewEncoder(export.DefaultOptions),
		format: export.FormatJSON,
		logger: slog.Default(),
		marker: hotspot.DefaultMarker,
	}
	for _, o := range opts {
		o(s)
	}

	s.session = reactor.NewSession(doc, s.out,
		reactor.WithLogger(s.logger),
		reactor.WithMarker(s.marker),
	)
	if err := s.session.Start(); err != nil {
		return nil, err
	}
	s.session.Refresh()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	s.RegisterHTTP(r)
	s.router = r
	return s, nil
}

// RegisterHTTP registers the API endpoints on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/export", s.handleExport)
		r.Put("/selection", s.handleSelect)

		r.Post("/hotspots", s.handleCreate)
		r.Put("/hotspots/selected", s.handleRename)

		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Patch("/", s.handleMove)
			r.Delete("/", s.handleDelete)
			r.Post("/duplicate", s.handleDuplicate)
		})
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Close detaches the session from the document.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Close()
}

// outbox keeps the latest pushed message and the notifications raised since
// the last read.
type outbox struct {
	last    selection.Result
	notices []string
}

func (o *outbox) Post(msg selection.Result) {
	o.last = msg
}

func (o *outbox) Notify(text string) {
	o.notices = append(o.notices, text)
}

func (o *outbox) take() []string {
	n := o.notices
	o.notices = nil
	return n
}

// statusFor maps a failed operation onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, hotspot.ErrNoFrameSelected),
		errors.Is(err, hotspot.ErrAmbiguousSelection),
		errors.Is(err, hotspot.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, hotspot.ErrMalformedAnnotation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, hotspot.ErrEmptyName),
		errors.Is(err, scene.ErrRootNode),
		errors.Is(err, scene.ErrDetached),
		errors.Is(err, scene.ErrCycle):
		return http.StatusBadRequest
	case errors.Is(err, scene.ErrUnknownNode):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
