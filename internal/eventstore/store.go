// Package eventstore provides the durable persistence layer beneath a
// session's event log. It is deliberately dumb: it knows nothing about
// sequence assignment, pruning policy or event types — that logic lives in
// internal/eventlog, which composes a Store.
package eventstore

import (
	"context"

	"github.com/roundtable/engine/pkg/types"
)

// Store persists one append-only event slice per session.
type Store interface {
	// Append adds e to sessionID's persisted log. Implementations must
	// preserve append order.
	Append(ctx context.Context, sessionID string, e types.Event) error

	// LoadAll returns every event persisted for sessionID, in append
	// order. Returns an empty slice (not an error) for an unknown session.
	LoadAll(ctx context.Context, sessionID string) ([]types.Event, error)

	// Overwrite replaces sessionID's entire persisted slice, used after a
	// prune rewrites the log in memory.
	Overwrite(ctx context.Context, sessionID string, events []types.Event) error

	// Delete removes all persisted events for sessionID.
	Delete(ctx context.Context, sessionID string) error

	// Sessions lists every session id with at least one persisted event.
	Sessions(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
