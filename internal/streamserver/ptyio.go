package streamserver

import (
	"encoding/base64"
	"time"

	"github.com/agentharness/harness/internal/broker"
	"github.com/agentharness/harness/internal/journal"
	"github.com/agentharness/harness/internal/livesession"
	"github.com/agentharness/harness/internal/ptyhost"
	"github.com/agentharness/harness/internal/store"
)

// handlePTYIO handles the three client->server envelope kinds that carry
// PTY I/O directly rather than as a command (spec.md §6): pty.input,
// pty.resize, pty.signal. These bypass command.accepted/completed
// framing since they're fire-and-forget on the wire.
func (s *Server) handlePTYIO(c *conn, env Envelope) {
	switch env.Kind {
	case KindPTYInput:
		s.ioInput(env)
	case KindPTYResize:
		s.ioResize(env)
	case KindPTYSignal:
		s.sendSignal(env.SessionID, orDefault(env.Signal, "interrupt"))
	}
}

func (s *Server) ioInput(env Envelope) {
	sess := s.deps.Registry.Get(env.SessionID)
	if sess == nil || sess.Live == nil {
		return
	}
	data, err := base64.StdEncoding.DecodeString(env.ChunkBase64)
	if err != nil {
		return
	}
	if err := sess.Live.Broker.Write(data); err != nil {
		return
	}
	s.deps.Registry.ApplyInput(env.SessionID, data)
}

func (s *Server) ioResize(env Envelope) {
	sess := s.deps.Registry.Get(env.SessionID)
	if sess == nil || sess.Live == nil || env.Cols <= 0 || env.Rows <= 0 {
		return
	}
	sess.Live.Broker.Resize(env.Cols, env.Rows)
}

// brokerHandlerPair adapts one connection's pty.attach into broker.Handlers,
// pushing pty.output/pty.exit envelopes over the wire.
type brokerHandlerPair struct {
	c         *conn
	sessionID string
}

func (p brokerHandlerPair) asHandlers() broker.Handlers {
	return broker.Handlers{
		OnData: func(cursor uint64, chunk []byte) {
			p.c.send(Envelope{
				Kind:        KindPTYOutput,
				SessionID:   p.sessionID,
				ChunkBase64: base64.StdEncoding.EncodeToString(chunk),
				Cursor:      cursor,
			})
		},
		OnExit: func(info ptyhost.ExitInfo) {
			p.c.send(Envelope{
				Kind:      KindPTYExit,
				SessionID: p.sessionID,
				Exit:      map[string]any{"exitCode": info.Code, "signal": info.Signal, "err": exitErrString(info)},
			})
		},
	}
}

func exitErrString(info ptyhost.ExitInfo) string {
	if info.Err == nil {
		return ""
	}
	return info.Err.Error()
}

// sessionEventRouter builds the Broker event listener pushed to every
// connection that has pty.subscribe-events active for sessionID. The
// membership check happens per-delivery, not at subscribe time, so
// pty.unsubscribe-events (which only flips the connection's map entry)
// takes effect without touching the Broker's listener list.
//
// This is also the runtime's only bridge from broker-level events to
// the Registry's status machine: a session-exit event retires the
// session (spec.md §3, §4.9), and notify-classified telemetry drives
// needs-input/completed (spec.md §8 scenarios 4-5).
func (s *Server) sessionEventRouter(sessionID string) broker.EventListener {
	return func(kind string, payload any) {
		s.applyTelemetryFromEvent(sessionID, kind, payload)

		s.mu.Lock()
		conns := make([]*conn, 0, len(s.conns))
		for _, c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		for _, c := range conns {
			c.mu.Lock()
			want := c.eventSessionIDs[sessionID]
			c.mu.Unlock()
			if !want {
				continue
			}
			c.send(Envelope{Kind: KindPTYEvent, SessionID: sessionID, Event: map[string]any{"kind": kind, "payload": payload}})
		}
	}
}

// applyTelemetryFromEvent drives the Registry's status machine off a
// broker event before it's forwarded over the wire.
func (s *Server) applyTelemetryFromEvent(sessionID, kind string, payload any) {
	switch kind {
	case "session-exit":
		s.deps.Registry.Exit(sessionID)
	case "attention-required":
		reason := ""
		if c, ok := payload.(livesession.Classification); ok {
			reason = c.Reason
		}
		s.deps.Registry.ApplyTelemetry(sessionID, "needs-input", reason, time.Now().UTC())
	case "turn-completed":
		s.deps.Registry.ApplyTelemetry(sessionID, "turn-completed", "", time.Now().UTC())
	}
}

// pumpSubscription forwards a journal subscription's channel to the
// connection as stream.event envelopes until Unsubscribe closes it.
func (s *Server) pumpSubscription(c *conn, subscriptionID string, sub *journal.Subscription) {
	for e := range sub.Events() {
		c.send(eventEnvelope(subscriptionID, e))
	}
}

func eventEnvelope(subscriptionID string, e journal.ObservedEvent) Envelope {
	return Envelope{
		Kind:           KindStreamEvent,
		SubscriptionID: subscriptionID,
		Cursor:         e.Cursor,
		Event:          map[string]any{"kind": e.Kind, "payload": e.Payload},
	}
}

func journalFilter(tenantID, userID, workspaceID, directoryID, conversationID string, includeOutput bool) journal.Filter {
	return journal.Filter{
		TenantID:       tenantID,
		UserID:         userID,
		WorkspaceID:    workspaceID,
		DirectoryID:    directoryID,
		ConversationID: conversationID,
		IncludeOutput:  includeOutput,
	}
}

func journalEventFromStore(kind string, scope store.Scope, directoryID, conversationID string, payload any) journal.ObservedEvent {
	return journal.ObservedEvent{
		Kind:           kind,
		TenantID:       scope.TenantID,
		UserID:         scope.UserID,
		WorkspaceID:    scope.WorkspaceID,
		DirectoryID:    directoryID,
		ConversationID: conversationID,
		Payload:        payload,
	}
}
