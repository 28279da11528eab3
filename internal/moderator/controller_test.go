package moderator

import (
	"context"
	"errors"
	"testing"

	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/pkg/types"
)

func newTestController(t *testing.T, order types.SpeakingOrder) *Controller {
	t.Helper()
	store := eventstore.NewMemoryStore()
	b := bus.New()
	t.Cleanup(func() { b.Close() })
	log, err := eventlog.Open(context.Background(), "s1", store, b, eventlog.Config{})
	if err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	return New(Config{
		SessionID:     "s1",
		Topic:         "test",
		Participants:  []string{"a1", "a2", "a3"},
		SpeakingOrder: order,
		MaxRounds:     2,
	}, log)
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, types.SpeakingOrderRoundRobin)

	if err := c.Pause(ctx); !errors.Is(err, coreerrors.ErrCapability) {
		t.Fatalf("expected ErrCapability pausing a pending session, got %v", err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State().Phase != types.PhaseActive {
		t.Fatalf("expected active, got %s", c.State().Phase)
	}
	if err := c.Start(ctx); !errors.Is(err, coreerrors.ErrCapability) {
		t.Fatal("expected starting an already-active session to fail")
	}
	if err := c.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := c.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := c.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}
	if !c.State().IsTerminal() {
		t.Fatal("expected terminal phase after End")
	}
}

func TestGrantNextTurnRoundRobin(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, types.SpeakingOrderRoundRobin)
	c.Start(ctx)

	speaker, ok, err := c.GrantNextTurn(ctx)
	if err != nil || !ok {
		t.Fatalf("GrantNextTurn: %v ok=%v", err, ok)
	}
	if speaker != "a1" {
		t.Fatalf("expected a1, got %s", speaker)
	}
	if err := c.ValidateSpeech("a1"); err != nil {
		t.Fatalf("ValidateSpeech: %v", err)
	}
	if err := c.ValidateSpeech("a2"); !errors.Is(err, coreerrors.ErrCapability) {
		t.Fatal("expected a2 to not hold the floor")
	}

	c.CompleteTurn(ctx)
	speaker2, _, _ := c.GrantNextTurn(ctx)
	if speaker2 != "a2" {
		t.Fatalf("expected round robin to advance to a2, got %s", speaker2)
	}
}

func TestSubmitIntentRequiresActiveSession(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, types.SpeakingOrderFree)

	_, err := c.SubmitIntent(ctx, types.Intent{AgentID: "a1"})
	if !errors.Is(err, coreerrors.ErrCapability) {
		t.Fatalf("expected ErrCapability before session starts, got %v", err)
	}

	c.Start(ctx)
	i, err := c.SubmitIntent(ctx, types.Intent{AgentID: "a1"})
	if err != nil {
		t.Fatalf("SubmitIntent: %v", err)
	}
	if i.ID == "" {
		t.Fatal("expected intent to be stamped with an ID")
	}

	speaker, ok, err := c.GrantNextTurn(ctx)
	if err != nil || !ok || speaker != "a1" {
		t.Fatalf("expected free order to grant a1 the floor: %v ok=%v speaker=%s", err, ok, speaker)
	}
	if c.Queue().Len() != 0 {
		t.Fatalf("expected queue to be drained after grant, got %d", c.Queue().Len())
	}
}

func TestAdvanceRoundEndsSessionAtMaxRounds(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, types.SpeakingOrderRoundRobin)
	c.Start(ctx)

	if err := c.AdvanceRound(ctx); err != nil {
		t.Fatalf("AdvanceRound: %v", err)
	}
	if c.State().Phase != types.PhaseActive {
		t.Fatal("expected session still active at round 2 of 2")
	}
	if err := c.AdvanceRound(ctx); err != nil {
		t.Fatalf("AdvanceRound: %v", err)
	}
	if c.State().Phase != types.PhaseCompleted {
		t.Fatalf("expected session completed past max rounds, got %s", c.State().Phase)
	}
}

func TestSetInterventionValidatesRange(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, types.SpeakingOrderRoundRobin)

	if err := c.SetIntervention(ctx, types.InterventionLevel(9)); !errors.Is(err, coreerrors.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for out-of-range level, got %v", err)
	}
	if err := c.SetIntervention(ctx, types.InterventionControl); err != nil {
		t.Fatalf("SetIntervention: %v", err)
	}
	if c.State().InterventionLevel != types.InterventionControl {
		t.Fatal("expected intervention level to be updated")
	}
}
