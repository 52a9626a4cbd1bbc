package journal

import "testing"

func TestPublishAssignsMonotonicCursor(t *testing.T) {
	j := New(100)
	e1 := j.Publish(ObservedEvent{Kind: "a"})
	e2 := j.Publish(ObservedEvent{Kind: "b"})
	if e2.Cursor <= e1.Cursor {
		t.Fatalf("cursor not increasing: %d then %d", e1.Cursor, e2.Cursor)
	}
}

func TestSubscriptionReceivesMatchingEventsOnly(t *testing.T) {
	j := New(100)
	sub, _ := j.Subscribe(Filter{WorkspaceID: "w1"}, 0)
	defer j.Unsubscribe(sub.ID)

	j.Publish(ObservedEvent{Kind: "x", WorkspaceID: "w2"})
	j.Publish(ObservedEvent{Kind: "y", WorkspaceID: "w1"})

	select {
	case e := <-sub.Events():
		if e.Kind != "y" {
			t.Fatalf("got %q, want y", e.Kind)
		}
	default:
		t.Fatalf("expected a matching event to be delivered")
	}

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected second event: %+v", e)
	default:
	}
}

func TestIncludeOutputFalseDropsSessionOutput(t *testing.T) {
	j := New(100)
	sub, _ := j.Subscribe(Filter{IncludeOutput: false}, 0)
	defer j.Unsubscribe(sub.ID)

	j.Publish(ObservedEvent{Kind: "session-output", IsOutput: true})
	select {
	case e := <-sub.Events():
		t.Fatalf("session-output should be dropped, got %+v", e)
	default:
	}
}

func TestSubscribeReplaysAfterCursor(t *testing.T) {
	j := New(100)
	j.Publish(ObservedEvent{Kind: "a"})
	e2 := j.Publish(ObservedEvent{Kind: "b"})
	e3 := j.Publish(ObservedEvent{Kind: "c"})

	_, replay := j.Subscribe(Filter{}, e2.Cursor-1)
	if len(replay) != 2 || replay[0].Kind != "b" || replay[1].Kind != "c" {
		t.Fatalf("replay = %+v, want [b c]", replay)
	}
	_ = e3
}

func TestRingBoundedDropsOldest(t *testing.T) {
	j := New(2)
	j.Publish(ObservedEvent{Kind: "a"})
	j.Publish(ObservedEvent{Kind: "b"})
	j.Publish(ObservedEvent{Kind: "c"})

	if len(j.ring) != 2 || j.ring[0].Kind != "b" {
		t.Fatalf("ring = %+v, want [b c] (oldest dropped)", j.ring)
	}
	_, replay := j.Subscribe(Filter{}, 1)
	if len(replay) != 2 || replay[0].Kind != "b" || replay[1].Kind != "c" {
		t.Fatalf("replay = %+v, want [b c] (ring bounded to 2)", replay)
	}
}

func TestUnsubscribeUnknownIDIsNoop(t *testing.T) {
	j := New(10)
	j.Unsubscribe(999)
}
