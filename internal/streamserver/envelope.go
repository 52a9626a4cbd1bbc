// Package streamserver implements the Stream Server (spec.md §4.8,
// component C7): a single TCP listener speaking newline-delimited JSON
// envelopes, unifying commands, PTY I/O, and event-stream subscriptions.
package streamserver

import "encoding/json"

// Envelope is the outer JSON shape for both directions of the wire
// protocol (spec.md §6 "Wire protocol"). Kind selects which of the
// optional fields is populated; Type sub-types "command" envelopes.
type Envelope struct {
	Kind string `json:"kind"`

	// command (client -> server)
	CommandID string          `json:"commandId,omitempty"`
	Type      string          `json:"type,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`

	// auth (client -> server)
	Token string `json:"token,omitempty"`

	// pty.input / pty.resize / pty.signal (client -> server)
	SessionID    string `json:"sessionId,omitempty"`
	ChunkBase64  string `json:"chunkBase64,omitempty"`
	Cols         int    `json:"cols,omitempty"`
	Rows         int    `json:"rows,omitempty"`
	Signal       string `json:"signal,omitempty"`

	// command.completed / command.failed (server -> client)
	Result any    `json:"result,omitempty"`
	Error  *WireError `json:"error,omitempty"`

	// pty.output / pty.event / pty.exit (server -> client)
	Cursor uint64 `json:"cursor,omitempty"`
	Event  any    `json:"event,omitempty"`
	Exit   any    `json:"exit,omitempty"`

	// stream.event (server -> client)
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// WireError is the error shape carried by command.failed.
type WireError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Envelope kinds, client -> server.
const (
	KindCommand   = "command"
	KindAuth      = "auth"
	KindPTYInput  = "pty.input"
	KindPTYResize = "pty.resize"
	KindPTYSignal = "pty.signal"
)

// Envelope kinds, server -> client.
const (
	KindAuthOK          = "auth.ok"
	KindAuthError       = "auth.error"
	KindCommandAccepted = "command.accepted"
	KindCommandComplete = "command.completed"
	KindCommandFailed   = "command.failed"
	KindPTYOutput       = "pty.output"
	KindPTYEvent        = "pty.event"
	KindPTYExit         = "pty.exit"
	KindStreamEvent     = "stream.event"
)

// Command types (spec.md §4.8 "Commands").
const (
	CmdAuth              = "auth"
	CmdPTYStart          = "pty.start"
	CmdPTYAttach         = "pty.attach"
	CmdPTYDetach         = "pty.detach"
	CmdPTYSubscribeEvts  = "pty.subscribe-events"
	CmdPTYUnsubscribeEvt = "pty.unsubscribe-events"
	CmdPTYClose          = "pty.close"
	CmdSessionList       = "session.list"
	CmdSessionStatus     = "session.status"
	CmdSessionSnapshot   = "session.snapshot"
	CmdSessionRespond    = "session.respond"
	CmdSessionInterrupt  = "session.interrupt"
	CmdSessionClaim      = "session.claim"
	CmdSessionRelease    = "session.release"
	CmdSessionRemove     = "session.remove"
	CmdAttentionList     = "attention.list"
	CmdStreamSubscribe   = "stream.subscribe"
	CmdStreamUnsubscribe = "stream.unsubscribe"

	CmdDirectoryUpsert  = "directory.upsert"
	CmdDirectoryList    = "directory.list"
	CmdDirectoryArchive = "directory.archive"

	CmdConversationUpsert  = "conversation.upsert"
	CmdConversationList    = "conversation.list"
	CmdConversationArchive = "conversation.archive"

	CmdRepositoryUpsert  = "repository.upsert"
	CmdRepositoryList    = "repository.list"
	CmdRepositoryArchive = "repository.archive"

	CmdTaskUpsert  = "task.upsert"
	CmdTaskList    = "task.list"
	CmdTaskReorder = "task.reorder"
	CmdTaskArchive = "task.archive"
)
