package modelclient

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/pkg/types"
)

// Registry holds every configured ModelClient, keyed by provider ID.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]ModelClient
	config  *types.Config
}

// NewRegistry creates an empty Registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{clients: make(map[string]ModelClient), config: config}
}

// Register adds a client to the registry, replacing any existing
// client registered under the same ID.
func (r *Registry) Register(c ModelClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID()] = c
}

// Get retrieves a client by provider ID.
func (r *Registry) Get(providerID string) (ModelClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[providerID]
	if !ok {
		return nil, fmt.Errorf("model client not found: %s: %w", providerID, coreerrors.ErrNotFound)
	}
	return c, nil
}

// List returns every registered client.
func (r *Registry) List() []ModelClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelClient, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// AllModels returns the combined model list across every registered
// client.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var models []types.Model
	for _, c := range r.clients {
		models = append(models, c.Models()...)
	}
	return models
}

// ParseProviderModel splits a "provider/model" string. If there is no
// slash, providerID is empty and the whole string is treated as the
// model ID.
func ParseProviderModel(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// InitializeFromConfig builds and registers a ModelClient for every
// non-disabled entry in config.Provider, plus well-known providers
// discoverable purely from environment variables when config omits
// them. A provider that fails to construct (missing credentials, bad
// config) is skipped rather than aborting the whole registry.
func InitializeFromConfig(ctx context.Context, config *types.Config) (*Registry, error) {
	registry := NewRegistry(config)
	configured := make(map[string]bool)

	for name, cfg := range config.Provider {
		if cfg.Disable {
			continue
		}
		configured[name] = true
		client, err := buildClient(ctx, name, cfg)
		if err != nil {
			logging.Warn().Str("provider", name).Err(err).Msg("model client registration failed")
			continue
		}
		if client != nil {
			registry.Register(client)
		}
	}

	if !configured["anthropic"] && os.Getenv("ANTHROPIC_API_KEY") != "" {
		if client, err := buildClient(ctx, "anthropic", types.ProviderConfig{}); err == nil {
			registry.Register(client)
		}
	}
	if !configured["openai"] && os.Getenv("OPENAI_API_KEY") != "" {
		if client, err := buildClient(ctx, "openai", types.ProviderConfig{}); err == nil {
			registry.Register(client)
		}
	}
	if !configured["ark"] && os.Getenv("ARK_API_KEY") != "" {
		if client, err := buildClient(ctx, "ark", types.ProviderConfig{}); err == nil {
			registry.Register(client)
		}
	}

	return registry, nil
}

func buildClient(ctx context.Context, name string, cfg types.ProviderConfig) (ModelClient, error) {
	switch name {
	case "anthropic", "claude":
		return NewAnthropicClient(ctx, AnthropicConfig{ID: name, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	case "openai":
		return NewOpenAIClient(ctx, OpenAIConfig{ID: name, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	case "ark":
		return NewArkClient(ctx, ArkConfig{ID: name, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	case "bedrock":
		return NewBedrockClient(ctx, BedrockConfig{ID: name, Region: cfg.Region})
	default:
		return nil, fmt.Errorf("unknown provider %q: %w", name, coreerrors.ErrConfiguration)
	}
}
