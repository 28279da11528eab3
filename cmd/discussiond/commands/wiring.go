package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/internal/sessionmgr"
	"github.com/roundtable/engine/pkg/types"
)

// postgresDSNEnv is the environment variable carrying the durable store's
// connection string. Falling back to an in-memory store when it's unset
// keeps scenario validation and one-shot session runs usable without a
// database.
const postgresDSNEnv = "DISCUSSIOND_POSTGRES_DSN"

// newStore opens the configured eventstore.Store: postgres when
// DISCUSSIOND_POSTGRES_DSN is set, otherwise an in-memory store suitable
// for local runs and tests.
func newStore() (eventstore.Store, error) {
	if dsn := os.Getenv(postgresDSNEnv); dsn != "" {
		store, err := eventstore.OpenPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logging.Info().Msg("using postgres event store")
		return store, nil
	}
	logging.Info().Msg("using in-memory event store")
	return eventstore.NewMemoryStore(), nil
}

// newManager builds a sessionmgr.Manager wired to the configured store and
// every model provider buildable from cfg.
func newManager(ctx context.Context, cfg *types.Config) (*sessionmgr.Manager, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}

	registry, err := modelclient.InitializeFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize model providers: %w", err)
	}
	if len(registry.List()) == 0 {
		logging.Warn().Msg("no model providers configured; sessions will fail to produce turns")
	}

	return sessionmgr.New(store, bus.New(), registry, cfg), nil
}
