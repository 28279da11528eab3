package intent

import (
	"testing"

	"github.com/roundtable/engine/pkg/types"
)

func TestSubmitOrdersByUrgencyThenFIFO(t *testing.T) {
	q := New()
	q.Submit(types.Intent{ID: "a", AgentID: "1", UrgencyLevel: 0, SubmittedAt: 1})
	q.Submit(types.Intent{ID: "b", AgentID: "2", UrgencyLevel: 2, SubmittedAt: 2})
	q.Submit(types.Intent{ID: "c", AgentID: "3", UrgencyLevel: 0, SubmittedAt: 3})

	list := q.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 intents, got %d", len(list))
	}
	if list[0].ID != "b" {
		t.Fatalf("expected highest urgency level first, got %s", list[0].ID)
	}
	if list[1].ID != "a" || list[2].ID != "c" {
		t.Fatalf("expected FIFO order within urgency level, got %v", list)
	}
}

func TestInterruptJumpsToHead(t *testing.T) {
	q := New()
	q.Submit(types.Intent{ID: "a", AgentID: "1", UrgencyLevel: 5, SubmittedAt: 1})
	q.Submit(types.Intent{ID: "interrupt", AgentID: "2", Interrupt: true, SubmittedAt: 2})

	head, ok := q.Peek()
	if !ok || head.ID != "interrupt" {
		t.Fatalf("expected interrupt intent at head, got %+v ok=%v", head, ok)
	}
}

func TestClearAgentRemovesOnlyThatAgent(t *testing.T) {
	q := New()
	q.Submit(types.Intent{ID: "a", AgentID: "1"})
	q.Submit(types.Intent{ID: "b", AgentID: "2"})
	q.Submit(types.Intent{ID: "c", AgentID: "1"})

	removed := q.ClearAgent("1")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	list := q.List()
	if len(list) != 1 || list[0].AgentID != "2" {
		t.Fatalf("expected only agent 2's intent to remain, got %v", list)
	}
}

func TestPopDrainsInOrder(t *testing.T) {
	q := New()
	q.Submit(types.Intent{ID: "a", UrgencyLevel: 1, SubmittedAt: 1})
	q.Submit(types.Intent{ID: "b", UrgencyLevel: 2, SubmittedAt: 2})

	first, ok := q.Pop()
	if !ok || first.ID != "b" {
		t.Fatalf("expected b first, got %+v", first)
	}
	second, ok := q.Pop()
	if !ok || second.ID != "a" {
		t.Fatalf("expected a second, got %+v", second)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected queue to be empty")
	}
}
