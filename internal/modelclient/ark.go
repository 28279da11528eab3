package modelclient

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/pkg/types"
)

// ArkConfig configures the Volcengine ARK-backed client.
type ArkConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string // endpoint ID on the ARK platform
	MaxTokens int
}

// ArkClient implements ModelClient against Volcengine's ARK platform.
type ArkClient struct {
	id        string
	chatModel model.ToolCallingChatModel
	models    []types.Model
}

// NewArkClient creates an ArkClient.
func NewArkClient(ctx context.Context, cfg ArkConfig) (*ArkClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ARK_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ARK_API_KEY not set: %w", coreerrors.ErrConfiguration)
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = os.Getenv("ARK_MODEL_ID")
	}
	if modelID == "" {
		return nil, fmt.Errorf("ARK_MODEL_ID not set: %w", coreerrors.ErrConfiguration)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ARK_BASE_URL")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	acfg := &ark.ChatModelConfig{APIKey: apiKey, Model: modelID, MaxTokens: &maxTokens}
	if baseURL != "" {
		acfg.BaseURL = baseURL
	}

	chatModel, err := ark.NewChatModel(ctx, acfg)
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "ark"
	}

	return &ArkClient{
		id:        id,
		chatModel: chatModel,
		models:    arkModels(id, modelID),
	}, nil
}

func (c *ArkClient) ID() string            { return c.id }
func (c *ArkClient) Models() []types.Model { return c.models }

func (c *ArkClient) Chat(ctx context.Context, req Request) (*schema.Message, error) {
	msg, err := bindTools(c.chatModel).Generate(ctx, req.Messages,
		model.WithMaxTokens(req.MaxTokens),
		model.WithTemperature(float32(req.Temperature)),
	)
	if err != nil {
		return nil, fmt.Errorf("ark chat: %w", coreerrors.ErrTransientModel)
	}
	return msg, nil
}

func (c *ArkClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	stream, err := bindTools(c.chatModel).Stream(ctx, req.Messages,
		model.WithMaxTokens(req.MaxTokens),
		model.WithTemperature(float32(req.Temperature)),
	)
	if err != nil {
		return nil, fmt.Errorf("ark stream: %w", coreerrors.ErrTransientModel)
	}
	errCh := make(chan error, 1)
	return drainStream(stream, errCh), nil
}

func (c *ArkClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("ark: embedding not supported: %w", coreerrors.ErrCapability)
}

func (c *ArkClient) TestConnection(ctx context.Context) error {
	_, err := c.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: "ping"},
	}, model.WithMaxTokens(1))
	if err != nil {
		return fmt.Errorf("ark connection test: %w", coreerrors.ErrAuthModel)
	}
	return nil
}

func arkModels(providerID, endpointID string) []types.Model {
	return []types.Model{
		{ID: endpointID, Name: "ARK Model", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 4096, SupportsTools: true},
	}
}
