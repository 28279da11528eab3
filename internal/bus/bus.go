// Package bus provides the pub/sub event fan-out used to deliver session
// events to observers in real time.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/pkg/types"
)

// Subscriber receives published events. A subscriber that panics is
// recovered and logged; it does not affect delivery to other subscribers
// for the same event.
type Subscriber func(types.Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus fans events out to type-scoped, session-scoped and global
// subscribers. It is backed by watermill's in-process gochannel transport
// so the wiring has a migration path to a distributed transport later,
// while preserving direct-call semantics (and thus typed events) for the
// observer layer today.
//
// Delivery order: within a single session, callers are expected to publish
// events in increasing Sequence order (the session's moderator actor
// serializes all appends for that session), and Bus delivers them to each
// subscriber in the order Publish/PublishSync was called. Bus itself does
// not reorder or buffer across sessions.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	byType    map[types.EventType][]subscriberEntry
	bySession map[string][]subscriberEntry
	global    []subscriberEntry

	nextID uint64
	closed bool
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 256,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		byType:    make(map[types.EventType][]subscriberEntry),
		bySession: make(map[string][]subscriberEntry),
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// SubscribeToType registers fn for events of the given type across all
// sessions. Returns an unsubscribe function.
func (b *Bus) SubscribeToType(t types.EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := b.newID()
	b.byType[t] = append(b.byType[t], subscriberEntry{id: id, fn: fn})
	return func() { b.removeFromType(t, id) }
}

// SubscribeToSession registers fn for all events belonging to sessionID.
// Returns an unsubscribe function.
func (b *Bus) SubscribeToSession(sessionID string, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := b.newID()
	b.bySession[sessionID] = append(b.bySession[sessionID], subscriberEntry{id: id, fn: fn})
	return func() { b.removeFromSession(sessionID, id) }
}

// SubscribeAll registers fn for every event published on the bus. Returns
// an unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})
	return func() { b.removeGlobal(id) }
}

// Subscribe is a convenience alias for SubscribeToSession, matching the
// observer-facing "subscribe to a session's events" operation.
func (b *Bus) Subscribe(sessionID string, fn Subscriber) func() {
	return b.SubscribeToSession(sessionID, fn)
}

func (b *Bus) removeFromType(t types.EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[t] = removeEntry(b.byType[t], id)
}

func (b *Bus) removeFromSession(sessionID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bySession[sessionID] = removeEntry(b.bySession[sessionID], id)
}

func (b *Bus) removeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = removeEntry(b.global, id)
}

func removeEntry(entries []subscriberEntry, id uint64) []subscriberEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

func (b *Bus) collect(e types.Event) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	subs := make([]Subscriber, 0, len(b.byType[e.Type])+len(b.bySession[e.SessionID])+len(b.global))
	for _, entry := range b.byType[e.Type] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.bySession[e.SessionID] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// Publish delivers e to subscribers asynchronously, one goroutine per
// subscriber, so a slow or stuck observer cannot stall the publisher.
func (b *Bus) Publish(e types.Event) {
	for _, sub := range b.collect(e) {
		go b.safeInvoke(sub, e)
	}
}

// PublishSync delivers e to every subscriber in the current goroutine,
// preserving the publisher's ordering. Used by the event log so observers
// see events in exactly append order.
func (b *Bus) PublishSync(e types.Event) {
	for _, sub := range b.collect(e) {
		b.safeInvoke(sub, e)
	}
}

// safeInvoke isolates one subscriber's panic from the rest of delivery.
func (b *Bus) safeInvoke(sub Subscriber, e types.Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Interface("panic", r).
				Str("sessionID", e.SessionID).
				Str("eventType", string(e.Type)).
				Msg("event subscriber panicked")
		}
	}()
	sub(e)
}

// Close shuts the bus down; subsequent Publish/Subscribe calls are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.byType = make(map[types.EventType][]subscriberEntry)
	b.bySession = make(map[string][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()
	return b.pubsub.Close()
}

// PubSub exposes the underlying watermill transport for advanced wiring
// (e.g. bridging to a distributed backend).
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}
