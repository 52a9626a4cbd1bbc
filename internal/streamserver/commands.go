package streamserver

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/agentharness/harness/internal/harnesserr"
	"github.com/agentharness/harness/internal/livesession"
	"github.com/agentharness/harness/internal/registry"
	"github.com/agentharness/harness/internal/store"
)

// dispatchCommand decodes env.Params for env.Type and routes to the
// matching handler, replying with command.completed or command.failed.
func (s *Server) dispatchCommand(c *conn, env Envelope) {
	result, err := s.runCommand(c, env)
	if err != nil {
		we := &WireError{Code: string(harnesserr.KindOf(err)), Message: err.Error()}
		c.send(Envelope{Kind: KindCommandFailed, CommandID: env.CommandID, Error: we})
		return
	}
	c.send(Envelope{Kind: KindCommandComplete, CommandID: env.CommandID, Result: result})
}

func (s *Server) runCommand(c *conn, env Envelope) (any, error) {
	switch env.Type {
	case CmdPTYStart:
		return s.cmdPTYStart(c, env)
	case CmdPTYAttach:
		return s.cmdPTYAttach(c, env)
	case CmdPTYDetach:
		return s.cmdPTYDetach(c, env)
	case CmdPTYSubscribeEvts:
		return s.cmdPTYSubscribeEvents(c, env)
	case CmdPTYUnsubscribeEvt:
		return s.cmdPTYUnsubscribeEvents(c, env)
	case CmdPTYClose:
		return s.cmdPTYClose(c, env)
	case CmdSessionList:
		return s.cmdSessionList(env)
	case CmdSessionStatus:
		return s.cmdSessionStatus(env)
	case CmdSessionSnapshot:
		return s.cmdSessionSnapshot(env)
	case CmdSessionRespond:
		return s.cmdSessionRespond(c, env)
	case CmdSessionInterrupt:
		return s.cmdSessionInterrupt(env)
	case CmdSessionClaim:
		return s.cmdSessionClaim(env)
	case CmdSessionRelease:
		return s.cmdSessionRelease(env)
	case CmdSessionRemove:
		return s.cmdSessionRemove(env)
	case CmdAttentionList:
		return s.cmdAttentionList(env)
	case CmdStreamSubscribe:
		return s.cmdStreamSubscribe(c, env)
	case CmdStreamUnsubscribe:
		return s.cmdStreamUnsubscribe(c, env)

	case CmdDirectoryUpsert:
		return s.cmdDirectoryUpsert(env)
	case CmdDirectoryList:
		return s.cmdDirectoryList(env)
	case CmdDirectoryArchive:
		return s.cmdGenericArchive(env, s.deps.Store.ArchiveDirectory)

	case CmdConversationUpsert:
		return s.cmdConversationUpsert(env)
	case CmdConversationList:
		return s.cmdConversationList(env)
	case CmdConversationArchive:
		return s.cmdGenericArchive(env, s.deps.Store.ArchiveConversation)

	case CmdRepositoryUpsert:
		return s.cmdRepositoryUpsert(env)
	case CmdRepositoryList:
		return s.cmdRepositoryList(env)
	case CmdRepositoryArchive:
		return s.cmdGenericArchive(env, s.deps.Store.ArchiveRepository)

	case CmdTaskUpsert:
		return s.cmdTaskUpsert(env)
	case CmdTaskList:
		return s.cmdTaskList(env)
	case CmdTaskReorder:
		return s.cmdTaskReorder(env)
	case CmdTaskArchive:
		return s.cmdGenericArchive(env, s.deps.Store.ArchiveTask)

	default:
		if isGitHubPRCommand(env.Type) {
			return s.cmdGitHubPRStub(env)
		}
		return nil, harnesserr.InvalidArgumentf("unknown command type %q", env.Type)
	}
}

func decodeParams(env Envelope, dst any) error {
	if len(env.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Params, dst); err != nil {
		return harnesserr.InvalidArgumentf("invalid params: %v", err)
	}
	return nil
}

func newID(supplied string) string {
	if supplied != "" {
		return supplied
	}
	return uuid.NewString()
}

// --- pty.* ---

type ptyStartParams struct {
	SessionID      string   `json:"sessionId"`
	TenantID       string   `json:"tenantId"`
	UserID         string   `json:"userId"`
	WorkspaceID    string   `json:"workspaceId"`
	WorktreeID     string   `json:"worktreeId"`
	DirectoryID    string   `json:"directoryId"`
	ConversationID string   `json:"conversationId"`
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	InitialCols    int      `json:"initialCols"`
	InitialRows    int      `json:"initialRows"`
	NotifyPath     string   `json:"notifyPath"`
	SnapshotEnabled bool    `json:"snapshotEnabled"`
}

func (s *Server) cmdPTYStart(c *conn, env Envelope) (any, error) {
	var p ptyStartParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	if p.InitialCols <= 0 || p.InitialRows <= 0 {
		return nil, harnesserr.InvalidArgumentf("initialCols and initialRows must be positive")
	}
	sessionID := newID(p.SessionID)

	live, err := s.deps.StartLiveSession(s.ctx, livesession.Config{
		Command:         p.Command,
		Args:            p.Args,
		Cols:            p.InitialCols,
		Rows:            p.InitialRows,
		PerfEnabled:     s.cfg.PerfEnabled,
		NotifyPath:      p.NotifyPath,
		PollInterval:    s.cfg.NotifyPollInterval,
		SnapshotEnabled: p.SnapshotEnabled,
		TerminalFG:      s.cfg.TerminalFG,
		TerminalBG:      s.cfg.TerminalBG,
		TerminalCursor:  s.cfg.TerminalCursor,
	})
	if err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "failed to start pty", err)
	}

	scope := registry.Scope{TenantID: p.TenantID, UserID: p.UserID, WorkspaceID: p.WorkspaceID, WorktreeID: p.WorktreeID}
	sess, err := s.deps.Registry.Start(sessionID, scope, p.DirectoryID, p.ConversationID, live)
	if err != nil {
		live.Close()
		if err == registry.ErrLiveSessionExists {
			return nil, harnesserr.AlreadyExistsf("%v", err)
		}
		return nil, harnesserr.Wrap(harnesserr.Internal, "failed to register session", err)
	}
	live.Broker.OnEvent(s.sessionEventRouter(sessionID))
	return map[string]any{"sessionId": sess.SessionID, "status": sess.Status}, nil
}

type sessionIDParams struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) cmdPTYAttach(c *conn, env Envelope) (any, error) {
	var p struct {
		sessionIDParams
		SinceCursor *uint64 `json:"sinceCursor"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	sess := s.deps.Registry.Get(p.SessionID)
	if sess == nil || sess.Live == nil {
		return nil, harnesserr.NotFoundf("unknown session %q", p.SessionID)
	}

	c.mu.Lock()
	if _, already := c.attachedSessionIDs[p.SessionID]; already {
		c.mu.Unlock()
		return map[string]any{"sessionId": p.SessionID}, nil
	}
	c.mu.Unlock()

	sinceCursor := p.SinceCursor
	if sinceCursor == nil {
		zero := uint64(0)
		sinceCursor = &zero
	}
	attachID := sess.Live.Broker.Attach(brokerHandlers(c, p.SessionID).asHandlers(), sinceCursor)

	c.mu.Lock()
	c.attachedSessionIDs[p.SessionID] = attachID
	c.mu.Unlock()

	return map[string]any{"sessionId": p.SessionID, "cursor": sess.Live.Broker.LatestCursor()}, nil
}

func (s *Server) cmdPTYDetach(c *conn, env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	c.mu.Lock()
	attachID, ok := c.attachedSessionIDs[p.SessionID]
	if ok {
		delete(c.attachedSessionIDs, p.SessionID)
	}
	c.mu.Unlock()
	if ok {
		if sess := s.deps.Registry.Get(p.SessionID); sess != nil && sess.Live != nil {
			sess.Live.Broker.Detach(attachID)
		}
	}
	return map[string]any{"sessionId": p.SessionID}, nil
}

func (s *Server) cmdPTYSubscribeEvents(c *conn, env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	if s.deps.Registry.Get(p.SessionID) == nil {
		return nil, harnesserr.NotFoundf("unknown session %q", p.SessionID)
	}
	c.mu.Lock()
	c.eventSessionIDs[p.SessionID] = true
	c.mu.Unlock()
	return map[string]any{"sessionId": p.SessionID}, nil
}

func (s *Server) cmdPTYUnsubscribeEvents(c *conn, env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	c.mu.Lock()
	delete(c.eventSessionIDs, p.SessionID)
	c.mu.Unlock()
	return map[string]any{"sessionId": p.SessionID}, nil
}

func (s *Server) cmdPTYClose(c *conn, env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	sess := s.deps.Registry.Get(p.SessionID)
	if sess == nil || sess.Live == nil {
		return nil, harnesserr.NotFoundf("session %q is not live", p.SessionID)
	}
	if err := sess.Live.Broker.Close(); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "close failed", err)
	}
	return map[string]any{"sessionId": p.SessionID}, nil
}

// brokerHandlers builds the Handlers a pty.attach wires into a session's
// Broker, pushing pty.output/pty.exit envelopes to this connection.
func brokerHandlers(c *conn, sessionID string) brokerHandlerPair {
	return brokerHandlerPair{c: c, sessionID: sessionID}
}

// --- session.* ---

type scopeParams struct {
	TenantID    string `json:"tenantId"`
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId"`
	WorktreeID  string `json:"worktreeId"`
}

func (s *Server) cmdSessionList(env Envelope) (any, error) {
	var p struct {
		scopeParams
		Status string `json:"status"`
		Live   *bool  `json:"live"`
		Sort   string `json:"sort"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	list := s.deps.Registry.List(registry.ListFilter{
		Scope: registry.Scope{TenantID: p.TenantID, UserID: p.UserID, WorkspaceID: p.WorkspaceID, WorktreeID: p.WorktreeID},
		Status: p.Status,
		Live:   p.Live,
		Sort:   p.Sort,
	})
	return map[string]any{"sessions": summarizeSessions(list)}, nil
}

func (s *Server) cmdSessionStatus(env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	sess := s.deps.Registry.Get(p.SessionID)
	if sess != nil {
		return summarizeSession(sess), nil
	}

	// Not in the in-memory registry: a daemon restart clears it, but a
	// needs-input session's durable projection (internal/store) outlives
	// the process (spec.md §4.7, §8 scenario 4).
	st, err := s.deps.Store.GetSessionState(p.SessionID)
	if err != nil || st == nil {
		return nil, harnesserr.NotFoundf("unknown session %q", p.SessionID)
	}
	return summarizeSessionState(*st), nil
}

func (s *Server) cmdSessionSnapshot(env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	sess := s.deps.Registry.Get(p.SessionID)
	if sess == nil || sess.Live == nil {
		return nil, harnesserr.NotFoundf("session %q is not live", p.SessionID)
	}
	frame, ok := sess.Live.Snapshot()
	if !ok {
		return nil, harnesserr.PreconditionFailedf("snapshot ingest is disabled for session %q", p.SessionID)
	}
	return frame, nil
}

func (s *Server) cmdSessionRespond(c *conn, env Envelope) (any, error) {
	var p struct {
		sessionIDParams
		Data          string `json:"data"`
		ControllerID  string `json:"controllerId"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	sess := s.deps.Registry.Get(p.SessionID)
	if sess == nil || sess.Live == nil {
		return nil, harnesserr.NotFoundf("session %q is not live", p.SessionID)
	}
	if sess.Controller != nil && sess.Controller.ControllerID != p.ControllerID {
		return nil, harnesserr.PreconditionFailedf("session is claimed by %s", sess.Controller.ControllerLabel)
	}
	data := []byte(p.Data)
	if err := sess.Live.Broker.Write(data); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "write failed", err)
	}
	s.deps.Registry.ApplyInput(p.SessionID, data)
	return map[string]any{"sessionId": p.SessionID}, nil
}

func (s *Server) cmdSessionInterrupt(env Envelope) (any, error) {
	var p struct {
		sessionIDParams
		Signal string `json:"signal"` // "interrupt" | "eof" | "terminate"
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	return nil, s.sendSignal(p.SessionID, orDefault(p.Signal, "interrupt"))
}

func (s *Server) sendSignal(sessionID, signal string) error {
	sess := s.deps.Registry.Get(sessionID)
	if sess == nil || sess.Live == nil {
		return harnesserr.PreconditionFailedf("session is not live")
	}
	switch signal {
	case "interrupt":
		return sess.Live.Broker.Write([]byte{0x03})
	case "eof":
		return sess.Live.Broker.Write([]byte{0x04})
	case "terminate":
		return sess.Live.Broker.Close()
	default:
		return harnesserr.InvalidArgumentf("unknown signal %q", signal)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *Server) cmdSessionClaim(env Envelope) (any, error) {
	var p struct {
		sessionIDParams
		ControllerID    string `json:"controllerId"`
		ControllerType  string `json:"controllerType"`
		ControllerLabel string `json:"controllerLabel"`
		Takeover        bool   `json:"takeover"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	prev, err := s.deps.Registry.Claim(p.SessionID, registry.Controller{
		ControllerID:    p.ControllerID,
		ControllerType:  registry.ControllerType(p.ControllerType),
		ControllerLabel: p.ControllerLabel,
	}, p.Takeover)
	if err != nil {
		return nil, harnesserr.PreconditionFailedf("%v", err)
	}
	return map[string]any{"sessionId": p.SessionID, "previousController": prev}, nil
}

func (s *Server) cmdSessionRelease(env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	s.deps.Registry.Release(p.SessionID)
	return map[string]any{"sessionId": p.SessionID}, nil
}

func (s *Server) cmdSessionRemove(env Envelope) (any, error) {
	var p sessionIDParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	s.deps.Registry.Remove(p.SessionID)
	return map[string]any{"sessionId": p.SessionID}, nil
}

func (s *Server) cmdAttentionList(env Envelope) (any, error) {
	var p scopeParams
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	list := s.deps.Registry.AttentionQueue(registry.Scope{TenantID: p.TenantID, UserID: p.UserID, WorkspaceID: p.WorkspaceID, WorktreeID: p.WorktreeID})
	return map[string]any{"sessions": summarizeSessions(list)}, nil
}

func summarizeSessions(ss []*registry.Session) []map[string]any {
	out := make([]map[string]any, len(ss))
	for i, sess := range ss {
		out[i] = summarizeSession(sess)
	}
	return out
}

func summarizeSession(sess *registry.Session) map[string]any {
	return map[string]any{
		"sessionId":       sess.SessionID,
		"directoryId":     sess.DirectoryID,
		"conversationId":  sess.ConversationID,
		"status":          sess.Status,
		"attentionReason": sess.AttentionReason,
		"live":            sess.IsLive,
		"controller":      sess.Controller,
		"startedAt":       sess.StartedAt,
		"exitedAt":        sess.ExitedAt,
		"lastEventAt":     sess.LastEventAt,
	}
}

// summarizeSessionState answers session.status for an id the in-memory
// Registry no longer holds, from its durable store.SessionState row.
func summarizeSessionState(st store.SessionState) map[string]any {
	var controller map[string]any
	if st.ControllerID != "" {
		controller = map[string]any{
			"ControllerID":    st.ControllerID,
			"ControllerType":  st.ControllerType,
			"ControllerLabel": st.ControllerLabel,
			"ClaimedAt":       st.ClaimedAt,
		}
	}
	return map[string]any{
		"sessionId":       st.SessionID,
		"directoryId":     st.DirectoryID,
		"conversationId":  st.ConversationID,
		"status":          st.Status,
		"attentionReason": st.AttentionReason,
		"live":            false,
		"controller":      controller,
		"startedAt":       st.StartedAt,
		"exitedAt":        st.ExitedAt,
		"lastEventAt":     st.LastEventAt,
	}
}

// --- stream.* ---

func (s *Server) cmdStreamSubscribe(c *conn, env Envelope) (any, error) {
	var p struct {
		scopeParams
		DirectoryID    string `json:"directoryId"`
		ConversationID string `json:"conversationId"`
		IncludeOutput  bool   `json:"includeOutput"`
		AfterCursor    uint64 `json:"afterCursor"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	if p.TenantID == "" && p.UserID == "" && p.WorkspaceID == "" {
		return nil, harnesserr.InvalidArgumentf("stream.subscribe requires at least one scope field")
	}
	sub, replay := s.deps.Journal.Subscribe(journalFilter(p.TenantID, p.UserID, p.WorkspaceID, p.DirectoryID, p.ConversationID, p.IncludeOutput), p.AfterCursor)

	subscriptionID := uuid.NewString()
	c.mu.Lock()
	c.streamSubscriptionIDs[subscriptionID] = sub.ID
	c.mu.Unlock()

	go s.pumpSubscription(c, subscriptionID, sub)

	for _, e := range replay {
		c.send(eventEnvelope(subscriptionID, e))
	}
	return map[string]any{"subscriptionId": subscriptionID, "cursor": s.deps.Journal.CurrentCursor()}, nil
}

func (s *Server) cmdStreamUnsubscribe(c *conn, env Envelope) (any, error) {
	var p struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	c.mu.Lock()
	subID, ok := c.streamSubscriptionIDs[p.SubscriptionID]
	if ok {
		delete(c.streamSubscriptionIDs, p.SubscriptionID)
	}
	c.mu.Unlock()
	if !ok {
		return nil, harnesserr.NotFoundf("unknown subscription %q", p.SubscriptionID)
	}
	s.deps.Journal.Unsubscribe(subID)
	return map[string]any{"subscriptionId": p.SubscriptionID}, nil
}

// --- directory / conversation / repository / task CRUD ---

func (s *Server) cmdDirectoryUpsert(env Envelope) (any, error) {
	var d store.Directory
	if err := decodeParams(env, &d); err != nil {
		return nil, err
	}
	d.ID = newID(d.ID)
	if err := s.deps.Store.UpsertDirectory(d); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "upsert directory failed", err)
	}
	s.publishStoreEvent("directory.upserted", d.Scope, d.ID, "", d)
	return map[string]any{"id": d.ID}, nil
}

func (s *Server) cmdDirectoryList(env Envelope) (any, error) {
	var f store.ListFilter
	if err := decodeParams(env, &f); err != nil {
		return nil, err
	}
	list, err := s.deps.Store.ListDirectories(f)
	if err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "list directories failed", err)
	}
	return map[string]any{"directories": list}, nil
}

func (s *Server) cmdConversationUpsert(env Envelope) (any, error) {
	var c store.Conversation
	if err := decodeParams(env, &c); err != nil {
		return nil, err
	}
	c.ID = newID(c.ID)
	if err := s.deps.Store.UpsertConversation(c); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "upsert conversation failed", err)
	}
	s.publishStoreEvent("conversation.upserted", c.Scope, c.DirectoryID, c.ID, c)
	return map[string]any{"id": c.ID}, nil
}

func (s *Server) cmdConversationList(env Envelope) (any, error) {
	var f store.ListFilter
	if err := decodeParams(env, &f); err != nil {
		return nil, err
	}
	list, err := s.deps.Store.ListConversations(f)
	if err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "list conversations failed", err)
	}
	return map[string]any{"conversations": list}, nil
}

func (s *Server) cmdRepositoryUpsert(env Envelope) (any, error) {
	var r store.Repository
	if err := decodeParams(env, &r); err != nil {
		return nil, err
	}
	r.ID = newID(r.ID)
	if err := s.deps.Store.UpsertRepository(r); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "upsert repository failed", err)
	}
	s.publishStoreEvent("repository.upserted", r.Scope, "", "", r)
	return map[string]any{"id": r.ID}, nil
}

func (s *Server) cmdRepositoryList(env Envelope) (any, error) {
	var f store.ListFilter
	if err := decodeParams(env, &f); err != nil {
		return nil, err
	}
	list, err := s.deps.Store.ListRepositories(f)
	if err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "list repositories failed", err)
	}
	return map[string]any{"repositories": list}, nil
}

func (s *Server) cmdTaskUpsert(env Envelope) (any, error) {
	var t store.Task
	if err := decodeParams(env, &t); err != nil {
		return nil, err
	}
	t.ID = newID(t.ID)
	if err := s.deps.Store.UpsertTask(t); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "upsert task failed", err)
	}
	s.publishStoreEvent("task.upserted", t.Scope, "", t.ConversationID, t)
	return map[string]any{"id": t.ID}, nil
}

func (s *Server) cmdTaskList(env Envelope) (any, error) {
	var f store.ListFilter
	if err := decodeParams(env, &f); err != nil {
		return nil, err
	}
	list, err := s.deps.Store.ListTasks(f)
	if err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "list tasks failed", err)
	}
	return map[string]any{"tasks": list}, nil
}

func (s *Server) cmdTaskReorder(env Envelope) (any, error) {
	var p struct {
		IDs []string `json:"ids"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	if err := s.deps.Store.ReorderTasks(p.IDs); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "reorder tasks failed", err)
	}
	s.publishStoreEvent("task.reordered", store.Scope{}, "", "", p.IDs)
	return map[string]any{"ids": p.IDs}, nil
}

func (s *Server) cmdGenericArchive(env Envelope, archive func(string) error) (any, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := decodeParams(env, &p); err != nil {
		return nil, err
	}
	if err := archive(p.ID); err != nil {
		return nil, harnesserr.Wrap(harnesserr.Internal, "archive failed", err)
	}
	return map[string]any{"id": p.ID}, nil
}

func (s *Server) publishStoreEvent(kind string, scope store.Scope, directoryID, conversationID string, payload any) {
	s.deps.Journal.Publish(journalEventFromStore(kind, scope, directoryID, conversationID, payload))
}

// --- github.pr.* ---

func isGitHubPRCommand(cmdType string) bool {
	return strings.HasPrefix(cmdType, "github.pr.")
}

// cmdGitHubPRStub answers github.pr.* commands with a precondition-failed
// error: the Data Model carries no persistent GitHub PR record, so there
// is nothing for these commands to operate on until that storage and the
// GitHub API client are designed.
func (s *Server) cmdGitHubPRStub(env Envelope) (any, error) {
	return nil, harnesserr.PreconditionFailedf("github PR integration is not enabled in this build")
}
