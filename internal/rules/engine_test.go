package rules

import (
	"testing"
	"time"

	"github.com/roundtable/engine/internal/intent"
	"github.com/roundtable/engine/pkg/types"
)

func TestSelectNextRoundRobin(t *testing.T) {
	e := New()
	state := &types.SessionState{
		SpeakingOrder: types.SpeakingOrderRoundRobin,
		Participants:  []string{"a", "b", "c"},
		SpeakerIndex:  1,
	}
	d, ok := e.SelectNext(state, intent.New())
	if !ok || d.AgentID != "b" {
		t.Fatalf("expected b, got %+v ok=%v", d, ok)
	}
}

func TestSelectNextFreeUsesQueueHead(t *testing.T) {
	e := New()
	q := intent.New()
	q.Submit(types.Intent{ID: "i1", AgentID: "x", UrgencyLevel: 1})
	state := &types.SessionState{SpeakingOrder: types.SpeakingOrderFree}

	d, ok := e.SelectNext(state, q)
	if !ok || d.AgentID != "x" {
		t.Fatalf("expected x, got %+v ok=%v", d, ok)
	}
}

func TestSelectNextModeratedNoParticipants(t *testing.T) {
	e := New()
	state := &types.SessionState{SpeakingOrder: types.SpeakingOrderModerated}
	_, ok := e.SelectNext(state, intent.New())
	if ok {
		t.Fatal("expected moderated order with no participants to yield no decision")
	}
}

func TestCheckTimeout(t *testing.T) {
	e := New()
	now := time.Now()
	state := &types.SessionState{
		TurnTimeoutSec: 10,
		TurnStartedAt:  now.Add(-20 * time.Second).UnixMilli(),
	}
	if !e.CheckTimeout(state, now) {
		t.Fatal("expected turn to have timed out")
	}

	fresh := &types.SessionState{
		TurnTimeoutSec: 10,
		TurnStartedAt:  now.Add(-1 * time.Second).UnixMilli(),
	}
	if e.CheckTimeout(fresh, now) {
		t.Fatal("expected fresh turn not to have timed out")
	}
}

func TestRemainingTimeNoLimit(t *testing.T) {
	e := New()
	state := &types.SessionState{}
	if got := e.RemainingTime(state, time.Now()); got != -1 {
		t.Fatalf("expected -1 for unlimited turn, got %v", got)
	}
}
