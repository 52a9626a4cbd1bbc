// Package journal implements the Event Router / Journal (spec.md §4.10,
// component C9): a single publish point that assigns a global monotonic
// stream cursor to every mutation, appends it to a ring-bounded log, and
// dispatches it to matching subscriptions. Grounded on the teacher's
// EventLog pattern surveyed in the example pack (a ring-bounded append
// log with a binary-searchable Since and buffered, drop-on-full
// subscriber channels), adapted here to scope-filtered dispatch instead
// of a single broadcast stream.
package journal

import (
	"sync"
)

// ObservedEvent is one entry in the journal (spec.md §3 "Observed event
// & journal").
type ObservedEvent struct {
	Cursor      uint64
	Kind        string // e.g. "session-status", "directory.upserted", "github.pr.updated"
	TenantID    string
	UserID      string
	WorkspaceID string
	DirectoryID string
	ConversationID string
	IsOutput    bool // true for session-output events, for includeOutput filtering
	Payload     any
}

// Filter narrows a subscription beyond its owning connection.
type Filter struct {
	TenantID       string
	UserID         string
	WorkspaceID    string
	DirectoryID    string
	ConversationID string
	IncludeOutput  bool
}

func (f Filter) matches(e ObservedEvent) bool {
	if f.TenantID != "" && f.TenantID != e.TenantID {
		return false
	}
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	if f.WorkspaceID != "" && f.WorkspaceID != e.WorkspaceID {
		return false
	}
	if f.DirectoryID != "" && f.DirectoryID != e.DirectoryID {
		return false
	}
	if f.ConversationID != "" && f.ConversationID != e.ConversationID {
		return false
	}
	if e.IsOutput && !f.IncludeOutput {
		return false
	}
	return true
}

// Subscription receives matching events in cursor order, FIFO, via a
// bounded channel; a slow consumer drops oldest-first once full rather
// than blocking the publisher.
type Subscription struct {
	ID     uint64
	Filter Filter

	ch     chan ObservedEvent
	closed bool
}

// Events returns the subscription's delivery channel.
func (s *Subscription) Events() <-chan ObservedEvent { return s.ch }

const subscriberQueueSize = 256

// Journal is the process-wide event router.
type Journal struct {
	mu          sync.Mutex
	maxEntries  int
	ring        []ObservedEvent
	nextCursor  uint64
	subs        map[uint64]*Subscription
	nextSubID   uint64
}

// New constructs a Journal bounded to maxEntries ring slots
// (maxStreamJournalEntries).
func New(maxEntries int) *Journal {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Journal{
		maxEntries: maxEntries,
		subs:       make(map[uint64]*Subscription),
	}
}

// Publish implements publishObservedEvent: assigns a cursor, appends to
// the ring, and dispatches to matching subscriptions.
func (j *Journal) Publish(e ObservedEvent) ObservedEvent {
	j.mu.Lock()
	j.nextCursor++
	e.Cursor = j.nextCursor
	j.ring = append(j.ring, e)
	if len(j.ring) > j.maxEntries {
		j.ring = j.ring[len(j.ring)-j.maxEntries:]
	}
	subs := make([]*Subscription, 0, len(j.subs))
	for _, s := range j.subs {
		subs = append(subs, s)
	}
	j.mu.Unlock()

	for _, s := range subs {
		if !s.Filter.matches(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			// Drop oldest to make room rather than block the publisher;
			// the subscriber observes a gap, not a stall.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- e:
			default:
			}
		}
	}
	return e
}

// Subscribe registers a new subscription. If afterCursor > 0, matching
// journal entries with cursor > afterCursor are replayed synchronously
// (via the returned slice) before the subscription goes live; replay
// past the ring's lower bound returns the current cursor with no
// backfill (spec.md §3 "journal is a bounded ring").
func (j *Journal) Subscribe(filter Filter, afterCursor uint64) (*Subscription, []ObservedEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.nextSubID++
	sub := &Subscription{
		ID:     j.nextSubID,
		Filter: filter,
		ch:     make(chan ObservedEvent, subscriberQueueSize),
	}
	j.subs[sub.ID] = sub

	var replay []ObservedEvent
	if afterCursor > 0 && (len(j.ring) == 0 || j.ring[0].Cursor <= afterCursor+1) {
		for _, e := range j.ring {
			if e.Cursor > afterCursor && filter.matches(e) {
				replay = append(replay, e)
			}
		}
	}
	return sub, replay
}

// Unsubscribe tears down a subscription. Unknown ids are a no-op.
func (j *Journal) Unsubscribe(id uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if s, ok := j.subs[id]; ok {
		delete(j.subs, id)
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
	}
}

// CurrentCursor returns the most recently assigned cursor.
func (j *Journal) CurrentCursor() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextCursor
}
