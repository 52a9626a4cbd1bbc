package store

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testScope() Scope {
	return Scope{TenantID: "t1", UserID: "u1", WorkspaceID: "w1"}
}

func TestDirectoryUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	d := Directory{ID: "d1", Scope: testScope(), Path: "/repo"}
	if err := s.UpsertDirectory(d); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetDirectory("d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Path != "/repo" {
		t.Fatalf("path = %q, want /repo", got.Path)
	}

	list, err := s.ListDirectories(ListFilter{Scope: testScope()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}

	if err := s.ArchiveDirectory("d1"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	list, _ = s.ListDirectories(ListFilter{Scope: testScope()})
	if len(list) != 0 {
		t.Fatalf("archived directory still listed: %v", list)
	}
	list, _ = s.ListDirectories(ListFilter{Scope: testScope(), IncludeArchived: true})
	if len(list) != 1 {
		t.Fatalf("includeArchived should still return it")
	}
}

func TestConversationAdapterStateShallowMerge(t *testing.T) {
	s := openTestStore(t)
	c := Conversation{
		ID: "c1", Scope: testScope(),
		AdapterState: map[string]any{"codex": map[string]any{"threadId": "a"}, "keep": "yes"},
	}
	if err := s.UpsertConversation(c); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}

	c2 := Conversation{
		ID: "c1", Scope: testScope(),
		AdapterState: map[string]any{"codex": map[string]any{"threadId": "b"}},
	}
	if err := s.UpsertConversation(c2); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	got, err := s.GetConversation("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AdapterState["keep"] != "yes" {
		t.Fatalf("shallow merge dropped unrelated key: %+v", got.AdapterState)
	}
	codex, ok := got.AdapterState["codex"].(map[string]any)
	if !ok || codex["threadId"] != "b" {
		t.Fatalf("codex key not overwritten: %+v", got.AdapterState)
	}
}

func TestSessionStateDoesNotOverwriteWithStaleEvent(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	st := SessionState{
		SessionID: "s1", Scope: testScope(),
		Status: "needs-input", StartedAt: now, LastEventAt: now,
	}
	if err := s.SaveSessionState(st); err != nil {
		t.Fatalf("save 1: %v", err)
	}

	stale := st
	stale.Status = "running"
	stale.LastEventAt = now.Add(-time.Minute)
	if err := s.SaveSessionState(stale); err != nil {
		t.Fatalf("save stale: %v", err)
	}

	got, err := s.GetSessionState("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "needs-input" {
		t.Fatalf("status = %q, want needs-input (stale update must not overwrite)", got.Status)
	}
}

func TestListNeedsInputRestoresAfterRestart(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	if err := s.SaveSessionState(SessionState{
		SessionID: "s1", Scope: testScope(), Status: "needs-input",
		AttentionReason: "approval", StartedAt: now, LastEventAt: now,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	list, err := s.ListNeedsInput(testScope())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].AttentionReason != "approval" {
		t.Fatalf("got %+v", list)
	}
}
