// Package registry implements the Session Registry & Lifecycle (spec.md
// §4.9, component C8): it maps sessionId to a Live Session plus derived
// status, owns the controller-claim state machine, the attention queue,
// and tombstone timers, and is the Stream Server's sole point of mutation
// for session records.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/agentharness/harness/internal/journal"
	"github.com/agentharness/harness/internal/livesession"
)

// Status is the session status enum (spec.md §3, §4.9).
type Status string

const (
	StatusRunning    Status = "running"
	StatusNeedsInput Status = "needs-input"
	StatusCompleted  Status = "completed"
	StatusExited     Status = "exited"
)

// ControllerType enumerates who may hold a session's controller claim.
type ControllerType string

const (
	ControllerAgent      ControllerType = "agent"
	ControllerHuman      ControllerType = "human"
	ControllerAutomation ControllerType = "automation"
)

// Controller is the mutable claim record on a session.
type Controller struct {
	ControllerID    string
	ControllerType  ControllerType
	ControllerLabel string
	ClaimedAt       time.Time
}

// Scope narrows session ownership, matching store.Scope.
type Scope struct {
	TenantID    string
	UserID      string
	WorkspaceID string
	WorktreeID  string
}

// Session is one registry entry.
type Session struct {
	SessionID   string
	Scope       Scope
	DirectoryID string
	ConversationID string

	Live *livesession.LiveSession

	Status          Status
	AttentionReason string
	IsLive          bool
	Controller      *Controller

	StartedAt    time.Time
	ExitedAt     *time.Time
	LastEventAt  time.Time
	LastKnownWorkAt time.Time

	LatestOutputCursor uint64

	tombstoneTimer *time.Timer
}

// Registry owns all sessions. One Registry per daemon.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	journal *journal.Journal

	tombstoneTTL func() time.Duration

	onPersist func(*Session)
	onRemove  func(sessionID string)
}

// New constructs a Registry. tombstoneTTL is called at exit time so
// config changes take effect for sessions that exit later.
func New(j *journal.Journal, tombstoneTTL func() time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		journal:  j,
		tombstoneTTL: tombstoneTTL,
	}
}

// OnPersist registers a callback invoked after every status or
// controller mutation, so a session's durable projection (internal/store
// SessionState) can track the in-memory one for restart recovery
// (spec.md §4.7, §8 scenario 4). Only one callback is kept; the daemon
// wires this once at startup.
func (r *Registry) OnPersist(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPersist = fn
}

// OnRemove registers a callback invoked when a session entry is
// destroyed, so its durable projection is cleaned up too.
func (r *Registry) OnRemove(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = fn
}

// ErrLiveSessionExists is returned by Start when sessionId names a
// currently-live session (spec.md §4.8 "pty.start fails if a live
// session with that id exists").
var ErrLiveSessionExists = &registryError{"a live session with this id already exists"}

type registryError struct{ msg string }

func (e *registryError) Error() string { return e.msg }

// Start registers a new live session, replacing any tombstoned entry
// with the same id.
func (r *Registry) Start(sessionID string, scope Scope, directoryID, conversationID string, live *livesession.LiveSession) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[sessionID]; ok && existing.IsLive {
		return nil, ErrLiveSessionExists
	}
	if existing, ok := r.sessions[sessionID]; ok && existing.tombstoneTimer != nil {
		existing.tombstoneTimer.Stop()
	}

	now := time.Now().UTC()
	s := &Session{
		SessionID:      sessionID,
		Scope:          scope,
		DirectoryID:    directoryID,
		ConversationID: conversationID,
		Live:           live,
		Status:         StatusRunning,
		IsLive:         true,
		StartedAt:      now,
		LastEventAt:    now,
		LastKnownWorkAt: now,
	}
	r.sessions[sessionID] = s
	r.publish(s, "session-status", nil)
	return s, nil
}

// Get returns the session, or nil if unknown.
func (r *Registry) Get(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// ApplyTelemetry implements the status state machine of spec.md §4.9.
// kind is one of "needs-input", "running-hint", "turn-completed".
func (r *Registry) ApplyTelemetry(sessionID string, kind string, attentionReason string, observedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[sessionID]
	if s == nil {
		return
	}
	if observedAt.Before(s.LastEventAt) {
		return // monotonicity: older event than stored is ignored
	}
	s.LastEventAt = observedAt

	switch kind {
	case "needs-input":
		s.Status = StatusNeedsInput
		s.AttentionReason = attentionReason
	case "running-hint":
		if s.Status == StatusNeedsInput || s.Status == StatusCompleted {
			s.Status = StatusRunning
			s.AttentionReason = ""
		}
	case "turn-completed":
		s.Status = StatusCompleted
		s.AttentionReason = ""
	}
	r.publish(s, "session-status", nil)
}

// ApplyInput implements the completed→running transition on a turn
// submission (input containing \r or \n) (spec.md §4.9).
func (r *Registry) ApplyInput(sessionID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[sessionID]
	if s == nil || s.Status != StatusCompleted {
		return
	}
	for _, b := range data {
		if b == '\r' || b == '\n' {
			s.Status = StatusRunning
			r.publish(s, "session-status", nil)
			return
		}
	}
}

// Exit transitions a session to exited and arms its tombstone timer.
func (r *Registry) Exit(sessionID string) {
	r.mu.Lock()
	s := r.sessions[sessionID]
	if s == nil || !s.IsLive {
		r.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	s.Status = StatusExited
	s.IsLive = false
	s.ExitedAt = &now
	ttl := time.Duration(0)
	if r.tombstoneTTL != nil {
		ttl = r.tombstoneTTL()
	}
	r.publish(s, "session-status", nil)
	r.mu.Unlock()

	if ttl <= 0 {
		r.Remove(sessionID)
		return
	}
	timer := time.AfterFunc(ttl, func() { r.Remove(sessionID) })
	r.mu.Lock()
	if cur, ok := r.sessions[sessionID]; ok && cur == s {
		s.tombstoneTimer = timer
	} else {
		timer.Stop()
	}
	r.mu.Unlock()
}

// Remove destroys a session entry immediately (spec.md §4.8
// "session.remove destroys immediately").
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if s.tombstoneTimer != nil {
		s.tombstoneTimer.Stop()
	}
	delete(r.sessions, sessionID)
	onRemove := r.onRemove
	r.mu.Unlock()
	if onRemove != nil {
		onRemove(sessionID)
	}
	if s.Live != nil {
		s.Live.Close()
	}
}

// Claim implements session.claim / takeover (spec.md §4.8).
func (r *Registry) Claim(sessionID string, c Controller, takeover bool) (prev *Controller, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[sessionID]
	if s == nil {
		return nil, &registryError{"unknown session"}
	}
	if s.Controller != nil && !takeover {
		return nil, &registryError{"session is already claimed by " + s.Controller.ControllerLabel}
	}
	prev = s.Controller
	c.ClaimedAt = time.Now().UTC()
	s.Controller = &c
	r.publish(s, "session-control", map[string]any{"previous": prev, "current": s.Controller})
	return prev, nil
}

// Release clears a session's controller.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[sessionID]
	if s == nil {
		return
	}
	prev := s.Controller
	s.Controller = nil
	r.publish(s, "session-control", map[string]any{"previous": prev, "current": nil})
}

// ListFilter narrows Session.List.
type ListFilter struct {
	Scope
	Status string
	Live   *bool
	Sort   string // "attention-first" | "started-asc" | "started-desc"
}

// List returns sessions matching f, sorted per spec.md §4.8 "Listing".
func (r *Registry) List(f ListFilter) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Session
	for _, s := range r.sessions {
		if f.TenantID != "" && f.TenantID != s.Scope.TenantID {
			continue
		}
		if f.UserID != "" && f.UserID != s.Scope.UserID {
			continue
		}
		if f.WorkspaceID != "" && f.WorkspaceID != s.Scope.WorkspaceID {
			continue
		}
		if f.WorktreeID != "" && f.WorktreeID != s.Scope.WorktreeID {
			continue
		}
		if f.Status != "" && string(s.Status) != f.Status {
			continue
		}
		if f.Live != nil && s.IsLive != *f.Live {
			continue
		}
		out = append(out, s)
	}

	switch f.Sort {
	case "started-asc":
		sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	case "started-desc":
		sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	default: // "attention-first"
		sort.Slice(out, func(i, j int) bool { return attentionFirstLess(out[i], out[j]) })
	}
	return out
}

// attentionFirstLess implements spec.md §4.8: needs-input first, then
// lastEventAt descending (nulls last), then startedAt descending, then id.
func attentionFirstLess(a, b *Session) bool {
	aAttn := a.Status == StatusNeedsInput
	bAttn := b.Status == StatusNeedsInput
	if aAttn != bAttn {
		return aAttn
	}
	if !a.LastEventAt.Equal(b.LastEventAt) {
		if a.LastEventAt.IsZero() {
			return false
		}
		if b.LastEventAt.IsZero() {
			return true
		}
		return a.LastEventAt.After(b.LastEventAt)
	}
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.After(b.StartedAt)
	}
	return a.SessionID < b.SessionID
}

// AttentionQueue returns needs-input sessions, most-recently-marked first.
func (r *Registry) AttentionQueue(scope Scope) []*Session {
	return r.List(ListFilter{Scope: scope, Status: string(StatusNeedsInput), Sort: "attention-first"})
}

func (r *Registry) publish(s *Session, kind string, payload any) {
	if r.journal == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{
			"sessionId":       s.SessionID,
			"status":          s.Status,
			"attentionReason": s.AttentionReason,
			"live":            s.IsLive,
		}
	}
	r.journal.Publish(journal.ObservedEvent{
		Kind:           kind,
		TenantID:       s.Scope.TenantID,
		UserID:         s.Scope.UserID,
		WorkspaceID:    s.Scope.WorkspaceID,
		DirectoryID:    s.DirectoryID,
		ConversationID: s.ConversationID,
		Payload:        payload,
	})
	if r.onPersist != nil {
		r.onPersist(s)
	}
}
