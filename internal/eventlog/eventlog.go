// Package eventlog implements the per-session append-only event log: it
// assigns sequence numbers, persists events through an eventstore.Store,
// publishes them on the bus, and prunes old history once a session's log
// grows past its configured retention limit.
package eventlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/pkg/types"
)

// Config governs a Log's retention behavior.
type Config struct {
	// MaxSize is the event count above which Append triggers an automatic
	// prune. Zero disables auto-pruning.
	MaxSize int
	// Strategy selects how an automatic prune trims the log.
	Strategy types.PruneStrategy
}

// DefaultConfig returns the engine's default retention policy: auto-prune
// by count once a session holds more than 500 events.
func DefaultConfig() Config {
	return Config{MaxSize: 500, Strategy: types.PruneByCount}
}

// Log is one session's event log: an ordered, sequence-numbered,
// append-only record of everything that happened, backed by a durable
// Store and fanned out over a Bus as it grows.
type Log struct {
	mu        sync.Mutex
	sessionID string
	store     eventstore.Store
	bus       *bus.Bus
	cfg       Config

	events []types.Event // non-transient events only, in sequence order
	seq    uint64
}

// Open loads sessionID's existing events (if any) from store and returns a
// Log ready to accept new appends. Safe to call for a session that has
// never been persisted before.
func Open(ctx context.Context, sessionID string, store eventstore.Store, b *bus.Bus, cfg Config) (*Log, error) {
	events, err := store.LoadAll(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Sequence < events[j].Sequence })

	var seq uint64
	if n := len(events); n > 0 {
		seq = events[n-1].Sequence
	}

	return &Log{
		sessionID: sessionID,
		store:     store,
		bus:       b,
		cfg:       cfg,
		events:    events,
		seq:       seq,
	}, nil
}

// Bus returns the bus this log fans events out over, so callers can
// subscribe directly without routing through the log itself.
func (l *Log) Bus() *bus.Bus {
	return l.bus
}

// Append records a new event for this session.
//
// Transient events (streaming speech chunks) are assigned the current
// sequence number without advancing it, are fanned out over the bus, but
// are never persisted and never counted toward Count/auto-prune — they
// exist only for observers watching the session live, and a replay from
// the store will not reproduce them.
func (l *Log) Append(ctx context.Context, eventType types.EventType, agentID string, payload map[string]any, transient bool) (types.Event, error) {
	l.mu.Lock()

	e := types.Event{
		ID:        ulid.Make().String(),
		SessionID: l.sessionID,
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		AgentID:   agentID,
		Payload:   payload,
		Transient: transient,
	}

	if transient {
		e.Sequence = l.seq
		l.mu.Unlock()
		if l.bus != nil {
			l.bus.PublishSync(e)
		}
		return e, nil
	}

	l.seq++
	e.Sequence = l.seq
	l.events = append(l.events, e)
	shouldPrune := l.cfg.MaxSize > 0 && len(l.events) > l.cfg.MaxSize
	l.mu.Unlock()

	if err := l.store.Append(ctx, l.sessionID, e); err != nil {
		return types.Event{}, fmt.Errorf("persist event: %w", err)
	}
	if l.bus != nil {
		l.bus.PublishSync(e)
	}

	if shouldPrune {
		if err := l.Prune(ctx, l.cfg.Strategy); err != nil {
			logging.Error().Err(err).Str("sessionID", l.sessionID).Msg("auto-prune failed")
		}
	}

	return e, nil
}

// GetRecent returns the last n non-transient events, oldest first. n <= 0
// returns the full retained log.
func (l *Log) GetRecent(n int) []types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n >= len(l.events) {
		return cloneEvents(l.events)
	}
	return cloneEvents(l.events[len(l.events)-n:])
}

// GetByType returns every retained event matching any of the given types,
// in sequence order.
func (l *Log) GetByType(types_ ...types.EventType) []types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := make(map[types.EventType]bool, len(types_))
	for _, t := range types_ {
		want[t] = true
	}
	var out []types.Event
	for _, e := range l.events {
		if want[e.Type] {
			out = append(out, e)
		}
	}
	return out
}

// GetAfterSequence returns every retained event with Sequence > after, in
// order. Used by observers resuming a stream after a reconnect.
func (l *Log) GetAfterSequence(after uint64) []types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := sort.Search(len(l.events), func(i int) bool { return l.events[i].Sequence > after })
	return cloneEvents(l.events[idx:])
}

// GetCurrentSequence returns the sequence number of the last appended
// non-transient event (0 if none has been appended yet).
func (l *Log) GetCurrentSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Count returns the number of events currently retained in memory (after
// any prior prune).
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Clear wipes the session's log, both the in-memory cache and the durable
// store. The sequence counter is not reset, so later events keep
// increasing rather than colliding with a replay of the old log.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
	return l.store.Delete(ctx, l.sessionID)
}

// pruneOpts configures a manual Prune call beyond the auto-prune default.
type pruneOpts struct {
	keepCount     int
	keepTypes     []types.EventType
	beforeSeq     uint64
	summaryPrefix string
}

// PruneOption customizes a Prune call.
type PruneOption func(*pruneOpts)

// WithKeepCount overrides how many of the most recent events byCount
// retains (default: half of Config.MaxSize, rounded down).
func WithKeepCount(n int) PruneOption { return func(o *pruneOpts) { o.keepCount = n } }

// WithKeepTypes selects which event types byType retains in full.
func WithKeepTypes(t ...types.EventType) PruneOption {
	return func(o *pruneOpts) { o.keepTypes = t }
}

// WithBeforeSequence sets the cutoff for beforeSequence pruning.
func WithBeforeSequence(seq uint64) PruneOption {
	return func(o *pruneOpts) { o.beforeSeq = seq }
}

// Prune trims the in-memory and persisted log according to strategy. A
// synthetic log.summary event is inserted ahead of the retained events
// (unless a log.summary event is already among them) so that anything
// reading the pruned log can tell how much history was discarded.
func (l *Log) Prune(ctx context.Context, strategy types.PruneStrategy, opts ...PruneOption) error {
	o := pruneOpts{}
	for _, opt := range opts {
		opt(&o)
	}

	l.mu.Lock()
	before := l.events
	var kept []types.Event

	switch strategy {
	case types.PruneByType:
		want := make(map[types.EventType]bool, len(o.keepTypes))
		for _, t := range o.keepTypes {
			want[t] = true
		}
		if len(want) == 0 {
			want[types.EventSummary] = true
		}
		for _, e := range before {
			if want[e.Type] {
				kept = append(kept, e)
			}
		}
	case types.PruneBeforeSequence:
		idx := sort.Search(len(before), func(i int) bool { return before[i].Sequence > o.beforeSeq })
		kept = append([]types.Event(nil), before[idx:]...)
	case types.PruneByCount:
		fallthrough
	default:
		keepCount := o.keepCount
		if keepCount <= 0 {
			keepCount = l.cfg.MaxSize / 2 // round down
			if keepCount <= 0 {
				keepCount = 1
			}
		}
		// SUMMARY events are retained unconditionally regardless of age,
		// since they are the only record of everything pruned before
		// them; only the non-summary tail is trimmed to keepCount.
		var summaries, rest []types.Event
		for _, e := range before {
			if e.Type == types.EventSummary || e.Type == types.EventSummaryGenerated {
				summaries = append(summaries, e)
			} else {
				rest = append(rest, e)
			}
		}
		if keepCount < len(rest) {
			rest = rest[len(rest)-keepCount:]
		}
		kept = append(append([]types.Event(nil), summaries...), rest...)
		sort.Slice(kept, func(i, j int) bool { return kept[i].Sequence < kept[j].Sequence })
	}

	discarded := len(before) - len(kept)
	hasSummary := false
	for _, e := range kept {
		if e.Type == types.EventSummary {
			hasSummary = true
			break
		}
	}
	needsSummary := discarded > 0 && !hasSummary
	if needsSummary {
		summary := types.Event{
			ID:        ulid.Make().String(),
			SessionID: l.sessionID,
			Type:      types.EventSummary,
			Timestamp: time.Now().UnixMilli(),
			Payload: map[string]any{
				"discardedCount": discarded,
				"prunedBefore":   firstSequence(kept),
			},
		}
		if len(before) > 0 {
			summary.Sequence = before[0].Sequence
		}
		kept = append([]types.Event{summary}, kept...)
	}

	l.events = kept
	l.mu.Unlock()

	logging.Info().Str("sessionID", l.sessionID).Int("before", len(before)).Int("after", len(kept)).Msg("event log pruned")

	if err := l.store.Overwrite(ctx, l.sessionID, kept); err != nil {
		return fmt.Errorf("overwrite pruned log: %w", err)
	}
	return nil
}

func firstSequence(events []types.Event) uint64 {
	if len(events) == 0 {
		return 0
	}
	return events[0].Sequence
}

func cloneEvents(events []types.Event) []types.Event {
	out := make([]types.Event, len(events))
	copy(out, events)
	return out
}
