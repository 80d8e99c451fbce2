package memory

import "testing"

func TestConversationAppendPreservesOrder(t *testing.T) {
	c := NewConversation(0, false)
	c.Append("hi", "hello")
	c.Append("how are you", "fine")

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(snap))
	}
	if snap[0].UserText != "hi" || snap[1].UserText != "how are you" {
		t.Fatalf("unexpected order: %+v", snap)
	}
}

func TestConversationAutoCleanupDropsOldestOnOverflow(t *testing.T) {
	c := NewConversation(2, true)
	c.Append("a", "1")
	c.Append("b", "2")
	c.Append("c", "3")

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected cap of 2 turns, got %d", len(snap))
	}
	if snap[0].UserText != "b" || snap[1].UserText != "c" {
		t.Fatalf("expected oldest turn dropped, got %+v", snap)
	}
}

func TestConversationWithoutAutoCleanupGrowsUnbounded(t *testing.T) {
	c := NewConversation(1, false)
	c.Append("a", "1")
	c.Append("b", "2")

	if c.Len() != 2 {
		t.Fatalf("expected no cleanup without AutoCleanup, got %d turns", c.Len())
	}
}

func TestConversationGetRemoveClear(t *testing.T) {
	c := NewConversation(0, false)
	turn := c.Append("q", "a")

	got, ok := c.Get(turn.TurnID)
	if !ok || got.UserText != "q" {
		t.Fatalf("expected to find appended turn, got %+v ok=%v", got, ok)
	}

	if !c.Remove(turn.TurnID) {
		t.Fatal("expected removal to succeed")
	}
	if _, ok := c.Get(turn.TurnID); ok {
		t.Fatal("expected turn to be gone after removal")
	}

	c.Append("x", "y")
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty conversation after Clear, got %d", c.Len())
	}
}

func TestConversationLastReportsEmptiness(t *testing.T) {
	c := NewConversation(0, false)
	if _, ok := c.Last(); ok {
		t.Fatal("expected no last turn on an empty conversation")
	}
	c.Append("q", "a")
	last, ok := c.Last()
	if !ok || last.UserText != "q" {
		t.Fatalf("unexpected last turn: %+v", last)
	}
}

func TestSessionsGetCreatesThenReusesConversation(t *testing.T) {
	s := NewSessions(10, true)
	a := s.Get("user-1")
	a.Append("hi", "hello")

	b := s.Get("user-1")
	if b.Len() != 1 {
		t.Fatalf("expected the same conversation to be reused, got %d turns", b.Len())
	}

	c := s.Get("user-2")
	if c.Len() != 0 {
		t.Fatalf("expected a fresh conversation for a new session, got %d turns", c.Len())
	}
}

func TestSessionsDropRemovesConversation(t *testing.T) {
	s := NewSessions(10, true)
	s.Get("user-1").Append("hi", "hello")
	s.Drop("user-1")

	if s.Get("user-1").Len() != 0 {
		t.Fatal("expected a dropped session to start fresh")
	}
}
