package modelclient

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/pkg/types"
)

// AnthropicConfig configures the Claude-backed client.
type AnthropicConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// AnthropicClient implements ModelClient against Anthropic's Claude API.
type AnthropicClient struct {
	id        string
	chatModel model.ToolCallingChatModel
	models    []types.Model
}

// NewAnthropicClient creates an AnthropicClient.
func NewAnthropicClient(ctx context.Context, cfg AnthropicConfig) (*AnthropicClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set: %w", coreerrors.ErrConfiguration)
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	ccfg := &claude.Config{APIKey: apiKey, Model: modelID, MaxTokens: maxTokens}
	if cfg.BaseURL != "" {
		ccfg.BaseURL = &cfg.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, ccfg)
	if err != nil {
		return nil, fmt.Errorf("create claude chat model: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "anthropic"
	}

	return &AnthropicClient{
		id:        id,
		chatModel: chatModel,
		models:    anthropicModels(id),
	}, nil
}

func (c *AnthropicClient) ID() string          { return c.id }
func (c *AnthropicClient) Models() []types.Model { return c.models }

func (c *AnthropicClient) Chat(ctx context.Context, req Request) (*schema.Message, error) {
	msg, err := bindTools(c.chatModel).Generate(ctx, req.Messages,
		model.WithMaxTokens(req.MaxTokens),
		model.WithTemperature(float32(req.Temperature)),
	)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", coreerrors.ErrTransientModel)
	}
	return msg, nil
}

func (c *AnthropicClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	stream, err := bindTools(c.chatModel).Stream(ctx, req.Messages,
		model.WithMaxTokens(req.MaxTokens),
		model.WithTemperature(float32(req.Temperature)),
	)
	if err != nil {
		return nil, fmt.Errorf("anthropic stream: %w", coreerrors.ErrTransientModel)
	}
	errCh := make(chan error, 1)
	return drainStream(stream, errCh), nil
}

func (c *AnthropicClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("anthropic: embedding not supported: %w", coreerrors.ErrCapability)
}

func (c *AnthropicClient) TestConnection(ctx context.Context) error {
	_, err := c.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: "ping"},
	}, model.WithMaxTokens(1))
	if err != nil {
		return fmt.Errorf("anthropic connection test: %w", coreerrors.ErrAuthModel)
	}
	return nil
}

func anthropicModels(providerID string) []types.Model {
	return []types.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 64000, SupportsTools: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 32000, SupportsTools: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true},
	}
}
