package reactor

import (
	"errors"
	"fmt"
	"log/slog"

	"hotspotter/internal/hotspot"
	"hotspotter/internal/scene"
	"hotspotter/internal/selection"
	"hotspotter/internal/snapshot"
)

// Host is the document capability set a Session is wired to.
type Host interface {
	hotspot.Document
	Root() *scene.Node
	Node(id string) (*scene.Node, bool)
	Selection() []*scene.Node
	OnSelectionChange(fn func()) func()
	OnDocumentChange(fn func(scene.DocumentChange)) func()
}

type taskKind int

const (
	taskCommand taskKind = iota
	taskChange
	taskRecompute
)

type task struct {
	kind   taskKind
	cmd    Command
	change scene.Change
	result *error
}

// Session serializes inbound commands and host notifications through one
// queue: command, then mutation, then recompute. Work raised while a task runs
// is appended to the queue and handled after it, so no handler re-enters.
type Session struct {
	host   Host
	ids    *hotspot.Manager
	agg    *selection.Aggregator
	out    Presenter
	logger *slog.Logger
	marker hotspot.MarkerTemplate

	queue    []task
	draining bool
	// mediated holds nodes created through Create whose CREATE notification
	// is still pending.
	mediated map[string]struct{}
	stop     []func()
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithMarker(m hotspot.MarkerTemplate) Option {
	return func(s *Session) { s.marker = m }
}

func NewSession(host Host, out Presenter, opts ...Option) *Session {
	s := &Session{
		host:     host,
		out:      out,
		logger:   slog.Default(),
		marker:   hotspot.DefaultMarker,
		mediated: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.marker.Name == "" {
		s.marker.Name = hotspot.DefaultMarker.Name
	}
	if s.marker.Size <= 0 {
		s.marker.Size = hotspot.DefaultMarker.Size
	}
	s.ids = hotspot.NewManager(host, s.marker)
	s.agg = selection.NewAggregator(host)
	return s
}

// Start makes sure the marker template exists, then subscribes to selection
// and document notifications. Creating a hotspot afterwards inserts only the
// marker.
func (s *Session) Start() error {
	if _, err := s.host.EnsureTemplate(s.marker.Name, s.marker.Size); err != nil {
		return fmt.Errorf("failed to prepare marker template: %w", err)
	}
	s.stop = append(s.stop,
		s.host.OnSelectionChange(s.onSelectionChange),
		s.host.OnDocumentChange(s.onDocumentChange),
	)
	return nil
}

// Close unsubscribes from the host.
func (s *Session) Close() {
	for _, stop := range s.stop {
		stop()
	}
	s.stop = nil
}

// ErrReentrantDispatch is returned when Dispatch is called from inside a
// presenter or listener callback of the same session.
var ErrReentrantDispatch = errors.New("dispatch called while the session is handling a task")

// Dispatch runs an inbound command and the recomputation that follows it.
// User-facing failures are also sent to the presenter as a notification.
func (s *Session) Dispatch(cmd Command) error {
	if s.draining {
		return ErrReentrantDispatch
	}
	var err error
	s.push(task{kind: taskCommand, cmd: cmd, result: &err})
	s.drain()
	return err
}

// Refresh pushes a fresh classification and snapshot to the presenter.
func (s *Session) Refresh() {
	s.push(task{kind: taskRecompute})
	s.drain()
}

// SelectionSnapshot builds the export snapshot of the frames the selection
// touches. It is empty when the selection touches no frame.
func (s *Session) SelectionSnapshot() (*snapshot.Snapshot, error) {
	res, err := s.agg.Compute()
	if err != nil {
		return nil, err
	}
	if res.Snapshot == nil {
		return &snapshot.Snapshot{}, nil
	}
	return res.Snapshot, nil
}

// DocumentSnapshot builds the export snapshot of every frame holding hotspots.
func (s *Session) DocumentSnapshot() (*snapshot.Snapshot, error) {
	return s.agg.DocumentSnapshot(s.host.Root())
}

func (s *Session) onSelectionChange() {
	s.push(task{kind: taskRecompute})
	s.drain()
}

// onDocumentChange acts on the most recent change of the edit only.
func (s *Session) onDocumentChange(ev scene.DocumentChange) {
	last, ok := ev.Last()
	if !ok {
		return
	}
	s.push(task{kind: taskChange, change: last})
	s.drain()
}

func (s *Session) push(t task) {
	if t.kind == taskRecompute && len(s.queue) > 0 && s.queue[len(s.queue)-1].kind == taskRecompute {
		return
	}
	s.queue = append(s.queue, t)
}

func (s *Session) drain() {
	if s.draining {
		return
	}
	s.draining = true
	defer func() { s.draining = false }()

	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		switch t.kind {
		case taskCommand:
			err := s.runCommand(t.cmd)
			if t.result != nil {
				*t.result = err
			}
		case taskChange:
			s.handleChange(t.change)
		case taskRecompute:
			s.recompute()
		}
	}
}

func (s *Session) runCommand(cmd Command) error {
	s.logger.Debug("command", "type", cmd.Type, "name", cmd.Name)

	var err error
	switch cmd.Type {
	case CommandCreateHotspot:
		var target *scene.Node
		if sel := s.host.Selection(); len(sel) > 0 {
			target = sel[0]
		}
		var node *scene.Node
		node, err = s.ids.Create(target, cmd.Name)
		if err == nil {
			s.mediated[node.ID] = struct{}{}
			s.logger.Info("hotspot created", "node", node.ID, "name", cmd.Name)
		}
	case CommandRenameHotspot:
		err = s.ids.Rename(s.host.Selection(), cmd.Name)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}

	if err != nil {
		s.report(err)
	}
	s.push(task{kind: taskRecompute})
	return err
}

func (s *Session) handleChange(c scene.Change) {
	switch c.Type {
	case scene.ChangeCreate:
		if _, ok := s.mediated[c.NodeID]; ok {
			delete(s.mediated, c.NodeID)
			return
		}
		n, ok := s.host.Node(c.NodeID)
		if !ok || !s.ids.Navigator().IsHotspot(n) {
			return
		}
		name, err := s.ids.Adopt(n)
		if err != nil {
			s.report(err)
			return
		}
		s.logger.Info("hotspot adopted", "node", n.ID, "name", name)
		s.push(task{kind: taskRecompute})

	case scene.ChangeDelete:
		// Remaining hotspots keep their creation labels; nothing is renumbered.
		s.logger.Debug("node deleted", "node", c.NodeID)

	case scene.ChangeProperty:
		if c.HasProperty(scene.PropX, scene.PropY) {
			s.push(task{kind: taskRecompute})
		}
	}
}

func (s *Session) recompute() {
	res, err := s.agg.Compute()
	if err != nil {
		s.report(err)
		return
	}
	s.out.Post(res)
}

func (s *Session) report(err error) {
	text, ok := UserMessage(err)
	if !ok {
		s.logger.Error("hotspot operation failed", "error", err)
		return
	}
	s.logger.Warn("hotspot operation rejected", "error", err)
	s.out.Notify(text)
}
