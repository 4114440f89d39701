package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// Session is one open editor: a canvas plus the loading flag that keeps
// estimation requests from overlapping.
type Session struct {
	ID        core.SessionID
	Canvas    *Canvas
	CreatedAt time.Time

	gate    *semaphore.Weighted
	loading atomic.Bool
}

func newSession(id core.SessionID, canvas *Canvas) *Session {
	return &Session{
		ID:        id,
		Canvas:    canvas,
		CreatedAt: time.Now(),
		gate:      semaphore.NewWeighted(1),
	}
}

// TryBeginLoading claims the estimation slot. It reports false when a
// request is already in flight.
func (s *Session) TryBeginLoading() bool {
	if !s.gate.TryAcquire(1) {
		return false
	}
	s.loading.Store(true)
	return true
}

// EndLoading releases the estimation slot.
func (s *Session) EndLoading() {
	if s.loading.CompareAndSwap(true, false) {
		s.gate.Release(1)
	}
}

// Loading reports whether an estimation request is in flight.
func (s *Session) Loading() bool { return s.loading.Load() }

// Scene renders the canvas and the loading indicator.
func (s *Session) Scene() Scene {
	scene := s.Canvas.Scene()
	scene.Loading = s.Loading()
	return scene
}

// SessionSaveFunc persists the graph of a session on exit.
type SessionSaveFunc func(ctx context.Context, id core.SessionID, nodes []causal.Node, edges []causal.Edge) error

// SessionManager keeps the open editor sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*Session
	defaults CanvasOptions
	save     SessionSaveFunc
}

// NewSessionManager creates a manager whose canvases start from defaults.
// save may be nil.
func NewSessionManager(defaults CanvasOptions, save SessionSaveFunc) *SessionManager {
	return &SessionManager{
		sessions: make(map[core.SessionID]*Session),
		defaults: defaults,
		save:     save,
	}
}

// Create opens a new empty session.
func (m *SessionManager) Create() *Session {
	return m.open(core.NewSessionID())
}

// Restore opens a session with the given id seeded with a saved graph.
func (m *SessionManager) Restore(id core.SessionID, nodes []causal.Node, edges []causal.Edge) (*Session, error) {
	if _, err := m.Get(id); err == nil {
		return nil, fmt.Errorf("session %s is already open", id)
	}
	s := m.open(id)
	if err := s.Canvas.Update(func(g *GraphModel) error { return g.Load(nodes, edges) }); err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, err
	}
	return s, nil
}

func (m *SessionManager) open(id core.SessionID) *Session {
	opts := m.defaults
	if m.save != nil {
		save := m.save
		opts.Save = func(ctx context.Context, nodes []causal.Node, edges []causal.Edge) error {
			return save(ctx, id, nodes, edges)
		}
	}
	s := newSession(id, NewCanvas(opts))
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session.
func (m *SessionManager) Get(id core.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return s, nil
}

// List returns the open session ids, oldest first.
func (m *SessionManager) List() []core.SessionID {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	ids := make([]core.SessionID, len(all))
	for i, s := range all {
		ids[i] = s.ID
	}
	return ids
}

// Close exits the session, saving its graph, and forgets it. The session
// stays open if saving fails.
func (m *SessionManager) Close(ctx context.Context, id core.SessionID) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := s.Canvas.Exit(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
