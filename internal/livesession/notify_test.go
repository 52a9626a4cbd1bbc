package livesession

import (
	"encoding/json"
	"testing"
)

func rec(t *testing.T, typ string) NotifyRecord {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"type": typ})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return NotifyRecord{Ts: "2026-01-01T00:00:00Z", Payload: payload}
}

func TestClassifyTurnCompleted(t *testing.T) {
	for _, typ := range []string{"agent-turn-complete", "agent.turn-completed"} {
		c := classify(rec(t, typ))
		if c.Kind != "turn-completed" {
			t.Fatalf("type %q: kind = %q, want turn-completed", typ, c.Kind)
		}
	}
}

func TestClassifyApprovalRequired(t *testing.T) {
	c := classify(rec(t, "item/file-change/request-approval/foo"))
	if c.Kind != "attention-required" || c.Reason != "approval" {
		t.Fatalf("got %+v", c)
	}
}

func TestClassifyUserInputRequired(t *testing.T) {
	c := classify(rec(t, "item/tool/request-input/bar"))
	if c.Kind != "attention-required" || c.Reason != "user-input" {
		t.Fatalf("got %+v", c)
	}
}

func TestClassifyOtherIsNotify(t *testing.T) {
	c := classify(rec(t, "something-else"))
	if c.Kind != "notify" {
		t.Fatalf("got %+v", c)
	}
}
