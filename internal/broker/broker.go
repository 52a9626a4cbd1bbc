// Package broker implements the Session Broker (spec.md §4.3, component
// C3): a per-session bounded replay window and multi-attachment fan-out
// sitting on top of internal/ptyhost. Grounded on the teacher's
// replayBuffer design (internal/egg/server.go in the original tree) but
// keyed by a monotonic per-chunk cursor rather than a byte offset, since
// attaches replay by "cursor greater than sinceCursor".
package broker

import (
	"sync"

	"github.com/agentharness/harness/internal/ptyhost"
)

// Handlers is the callback pair an attachment registers.
type Handlers struct {
	OnData func(cursor uint64, chunk []byte)
	OnExit func(info ptyhost.ExitInfo)
}

// EventListener receives higher-level session events. The broker itself
// emits "terminal-output", "session-exit" and "error"; any other kind
// comes from NotifyAdapterEvent ("notify", "attention-required",
// "turn-completed", "query-unhandled" from the Live Session).
type EventListener func(kind string, payload any)

type replayChunk struct {
	cursor uint64
	data   []byte
}

type attachment struct {
	id  uint64
	h   Handlers
}

// Broker owns one session's replay window, attachments, and event
// listeners. One Broker is constructed per live session.
type Broker struct {
	host *ptyhost.Host

	mu           sync.Mutex
	replay       []replayChunk
	replayLimit  int
	latestCursor uint64
	nextAttachID uint64
	attachments  []attachment
	listeners    []EventListener
}

// New constructs a Broker wrapping an already-started PTY host.
// replayLimit bounds the number of buffered chunks retained for late
// attaches; 0 uses a sane default.
func New(host *ptyhost.Host, replayLimit int) *Broker {
	if replayLimit <= 0 {
		replayLimit = 512
	}
	b := &Broker{
		host:        host,
		replayLimit: replayLimit,
	}
	host.OnData(b.handleData)
	host.OnExit(b.handleExit)
	host.OnError(func(err error) {
		b.emit("error", err)
	})
	return b
}

// Attach registers handlers and, if sinceCursor is non-nil, synchronously
// replays buffered chunks with cursor > *sinceCursor before returning. The
// returned attachmentId is stable until Detach.
func (b *Broker) Attach(h Handlers, sinceCursor *uint64) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextAttachID++
	id := b.nextAttachID

	if sinceCursor != nil && h.OnData != nil {
		for _, rc := range b.replay {
			if rc.cursor > *sinceCursor {
				h.OnData(rc.cursor, rc.data)
			}
		}
	}

	b.attachments = append(b.attachments, attachment{id: id, h: h})
	return id
}

// Detach removes an attachment. Unknown ids are a silent no-op.
func (b *Broker) Detach(attachmentID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, a := range b.attachments {
		if a.id == attachmentID {
			b.attachments = append(b.attachments[:i], b.attachments[i+1:]...)
			return
		}
	}
}

// Write proxies input to the PTY host. It does not advance the cursor;
// the cursor advances only on the outbound echo path (spec.md §4.3).
func (b *Broker) Write(p []byte) error {
	return b.host.Write(p)
}

// Resize proxies a terminal resize to the PTY host.
func (b *Broker) Resize(cols, rows int) error {
	return b.host.Resize(cols, rows)
}

// Close proxies a close to the PTY host.
func (b *Broker) Close() error {
	return b.host.Close()
}

// OnEvent subscribes a listener for higher-level session events.
func (b *Broker) OnEvent(fn EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// LatestCursor returns the current output cursor.
func (b *Broker) LatestCursor() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latestCursor
}

// NotifyAdapterEvent lets a Live Session (C5) inject adapter-classified
// events (notify / attention-required / turn-completed, and the oracle's
// query-unhandled) into the
// broker's event stream without going through the PTY data path.
func (b *Broker) NotifyAdapterEvent(kind string, payload any) {
	b.emit(kind, payload)
}

func (b *Broker) handleData(chunk []byte) {
	b.mu.Lock()
	b.latestCursor++
	cursor := b.latestCursor
	b.replay = append(b.replay, replayChunk{cursor: cursor, data: chunk})
	if len(b.replay) > b.replayLimit {
		b.replay = b.replay[len(b.replay)-b.replayLimit:]
	}
	attached := make([]attachment, len(b.attachments))
	copy(attached, b.attachments)
	b.mu.Unlock()

	for _, a := range attached {
		if a.h.OnData != nil {
			a.h.OnData(cursor, chunk)
		}
	}
	b.emit("terminal-output", chunk)
}

func (b *Broker) handleExit(info ptyhost.ExitInfo) {
	b.mu.Lock()
	attached := make([]attachment, len(b.attachments))
	copy(attached, b.attachments)
	b.mu.Unlock()

	for _, a := range attached {
		if a.h.OnExit != nil {
			a.h.OnExit(info)
		}
	}
	b.emit("session-exit", info)
}

func (b *Broker) emit(kind string, payload any) {
	b.mu.Lock()
	listeners := make([]EventListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		l(kind, payload)
	}
}
