package eventlog

import (
	"context"
	"testing"

	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/pkg/types"
)

func newTestLog(t *testing.T, cfg Config) (*Log, eventstore.Store) {
	t.Helper()
	store := eventstore.NewMemoryStore()
	b := bus.New()
	t.Cleanup(func() { b.Close() })
	log, err := Open(context.Background(), "s1", store, b, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return log, store
}

func TestAppendAssignsIncreasingSequence(t *testing.T) {
	log, _ := newTestLog(t, Config{})

	e1, err := log.Append(context.Background(), types.EventIntentSubmitted, "a1", nil, false)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	e2, err := log.Append(context.Background(), types.EventTurnGranted, "a1", nil, false)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if e1.Sequence != 1 || e2.Sequence != 2 {
		t.Fatalf("expected sequences 1,2 got %d,%d", e1.Sequence, e2.Sequence)
	}
	if log.GetCurrentSequence() != 2 {
		t.Fatalf("expected current sequence 2, got %d", log.GetCurrentSequence())
	}
}

func TestTransientEventsDoNotAdvanceSequence(t *testing.T) {
	log, _ := newTestLog(t, Config{})
	ctx := context.Background()

	log.Append(ctx, types.EventIntentSubmitted, "a1", nil, false)
	before := log.GetCurrentSequence()

	chunk, err := log.Append(ctx, types.EventSpeechChunk, "a1", map[string]any{"delta": "hi"}, true)
	if err != nil {
		t.Fatalf("Append transient: %v", err)
	}
	if chunk.Sequence != before {
		t.Fatalf("transient event should not advance sequence: before=%d got=%d", before, chunk.Sequence)
	}
	if log.GetCurrentSequence() != before {
		t.Fatalf("transient event should not advance log sequence")
	}
	if log.Count() != 1 {
		t.Fatalf("transient event should not be retained: count=%d", log.Count())
	}
}

func TestGetByTypeAndAfterSequence(t *testing.T) {
	log, _ := newTestLog(t, Config{})
	ctx := context.Background()

	log.Append(ctx, types.EventIntentSubmitted, "a1", nil, false)
	log.Append(ctx, types.EventTurnGranted, "a1", nil, false)
	log.Append(ctx, types.EventIntentSubmitted, "a2", nil, false)

	intents := log.GetByType(types.EventIntentSubmitted)
	if len(intents) != 2 {
		t.Fatalf("expected 2 intent events, got %d", len(intents))
	}

	after := log.GetAfterSequence(1)
	if len(after) != 2 {
		t.Fatalf("expected 2 events after sequence 1, got %d", len(after))
	}
	if after[0].Sequence != 2 {
		t.Fatalf("expected first event after seq 1 to be seq 2, got %d", after[0].Sequence)
	}
}

func TestAutoPruneKeepsSummaryAndTail(t *testing.T) {
	log, store := newTestLog(t, Config{MaxSize: 4, Strategy: types.PruneByCount})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := log.Append(ctx, types.EventIntentSubmitted, "a1", nil, false); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	events := log.GetRecent(0)
	if events[0].Type != types.EventSummary {
		t.Fatalf("expected first retained event to be a summary marker, got %s", events[0].Type)
	}
	if len(events) > 4 {
		t.Fatalf("expected pruned log to respect keep-count bound, got %d events", len(events))
	}

	persisted, err := store.LoadAll(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(persisted) != len(events) {
		t.Fatalf("persisted log should match in-memory log after prune: %d vs %d", len(persisted), len(events))
	}
}

func TestPruneByCountRetainsOldSummaryEvent(t *testing.T) {
	log, _ := newTestLog(t, Config{MaxSize: 10, Strategy: types.PruneByCount})
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		if _, err := log.Append(ctx, types.EventIntentSubmitted, "a1", nil, false); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	summary, err := log.Append(ctx, types.EventSummary, "", map[string]any{"discardedCount": 9}, false)
	if err != nil {
		t.Fatalf("Append summary: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := log.Append(ctx, types.EventIntentSubmitted, "a1", nil, false); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := log.Prune(ctx, types.PruneByCount, WithKeepCount(5)); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	events := log.GetRecent(0)
	var sawSummary bool
	for _, e := range events {
		if e.ID == summary.ID {
			sawSummary = true
		}
	}
	if !sawSummary {
		t.Fatalf("expected the real summary event to survive prune, got %d events", len(events))
	}
	if len(events) != 6 {
		t.Fatalf("expected summary + 5 most recent non-summary events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Sequence <= events[i-1].Sequence {
			t.Fatalf("expected ascending sequence order, got %d then %d", events[i-1].Sequence, events[i].Sequence)
		}
	}
}

func TestOpenReplaysPersistedEvents(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore()
	b := bus.New()
	defer b.Close()

	log, err := Open(ctx, "s1", store, b, Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.Append(ctx, types.EventIntentSubmitted, "a1", nil, false)
	log.Append(ctx, types.EventTurnGranted, "a1", nil, false)

	reloaded, err := Open(ctx, "s1", store, b, Config{})
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	if reloaded.Count() != 2 {
		t.Fatalf("expected replayed log to have 2 events, got %d", reloaded.Count())
	}
	if reloaded.GetCurrentSequence() != 2 {
		t.Fatalf("expected replayed sequence counter to resume at 2, got %d", reloaded.GetCurrentSequence())
	}
}
