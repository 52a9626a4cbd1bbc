package registry

import (
	"testing"
	"time"

	"github.com/agentharness/harness/internal/journal"
)

func testScope() Scope {
	return Scope{TenantID: "t1", UserID: "u1", WorkspaceID: "w1"}
}

func TestStartRejectsDuplicateLiveSession(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	if _, err := r.Start("s1", testScope(), "", "", nil); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if _, err := r.Start("s1", testScope(), "", "", nil); err != ErrLiveSessionExists {
		t.Fatalf("want ErrLiveSessionExists, got %v", err)
	}
}

func TestStartAllowsReusingTombstonedID(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	if _, err := r.Start("s1", testScope(), "", "", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Exit("s1") // ttl=0 destroys synchronously

	if _, err := r.Start("s1", testScope(), "", "", nil); err != nil {
		t.Fatalf("restart after tombstone: %v", err)
	}
}

func TestTelemetryNeedsInputThenRunningHint(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	r.Start("s1", testScope(), "", "", nil)

	r.ApplyTelemetry("s1", "needs-input", "approval", time.Now())
	s := r.Get("s1")
	if s.Status != StatusNeedsInput || s.AttentionReason != "approval" {
		t.Fatalf("got status=%v reason=%v", s.Status, s.AttentionReason)
	}

	r.ApplyTelemetry("s1", "running-hint", "", time.Now())
	s = r.Get("s1")
	if s.Status != StatusRunning || s.AttentionReason != "" {
		t.Fatalf("got status=%v reason=%v, want running/cleared", s.Status, s.AttentionReason)
	}
}

func TestCompletedHintsFromTelemetryAreIgnored(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	r.Start("s1", testScope(), "", "", nil)
	r.ApplyTelemetry("s1", "needs-input", "approval", time.Now())

	// "completed" is not a handled kind per spec.md §4.9 — only
	// turn-completed or exit closes a turn.
	r.ApplyTelemetry("s1", "completed", "", time.Now())
	if r.Get("s1").Status != StatusNeedsInput {
		t.Fatalf("completed hint must not change status")
	}
}

func TestInputWithNewlineResumesFromCompleted(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	r.Start("s1", testScope(), "", "", nil)
	r.ApplyTelemetry("s1", "turn-completed", "", time.Now())
	if r.Get("s1").Status != StatusCompleted {
		t.Fatalf("want completed after turn-completed")
	}

	r.ApplyInput("s1", []byte("no newline"))
	if r.Get("s1").Status != StatusCompleted {
		t.Fatalf("input without newline must not resume")
	}

	r.ApplyInput("s1", []byte("go\n"))
	if r.Get("s1").Status != StatusRunning {
		t.Fatalf("input with newline must resume to running")
	}
}

func TestStaleTelemetryIgnored(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	r.Start("s1", testScope(), "", "", nil)
	now := time.Now()
	r.ApplyTelemetry("s1", "needs-input", "approval", now)
	r.ApplyTelemetry("s1", "running-hint", "", now.Add(-time.Minute))

	if r.Get("s1").Status != StatusNeedsInput {
		t.Fatalf("stale event must not overwrite newer state")
	}
}

func TestClaimTakeoverReplacesController(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	r.Start("s1", testScope(), "", "", nil)

	if _, err := r.Claim("s1", Controller{ControllerID: "a", ControllerLabel: "Alice"}, false); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := r.Claim("s1", Controller{ControllerID: "b", ControllerLabel: "Bob"}, false); err == nil {
		t.Fatalf("second claim without takeover should fail")
	}
	prev, err := r.Claim("s1", Controller{ControllerID: "b", ControllerLabel: "Bob"}, true)
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if prev == nil || prev.ControllerID != "a" {
		t.Fatalf("takeover should report previous controller, got %+v", prev)
	}
}

func TestAttentionFirstOrdering(t *testing.T) {
	r := New(journal.New(100), func() time.Duration { return 0 })
	r.Start("a", testScope(), "", "", nil)
	r.Start("b", testScope(), "", "", nil)
	r.ApplyTelemetry("b", "needs-input", "approval", time.Now())

	list := r.List(ListFilter{Scope: testScope(), Sort: "attention-first"})
	if len(list) != 2 || list[0].SessionID != "b" {
		t.Fatalf("got order %v, want [b a]", sessionIDs(list))
	}
}

func sessionIDs(ss []*Session) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.SessionID
	}
	return out
}
