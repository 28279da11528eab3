package modelclient

import (
	"context"
	"fmt"
	"os"

	einoembopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/pkg/types"
)

// OpenAIConfig configures the OpenAI-backed client.
type OpenAIConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	UseAzure   bool
	APIVersion string

	// EmbeddingModel selects the embedding model used by Embed. Defaults
	// to text-embedding-3-small.
	EmbeddingModel string
}

// OpenAIClient implements ModelClient against the OpenAI chat and
// embedding APIs.
type OpenAIClient struct {
	id        string
	chatModel model.ToolCallingChatModel
	embedder  embedding.Embedder
	models    []types.Model
}

// NewOpenAIClient creates an OpenAIClient.
func NewOpenAIClient(ctx context.Context, cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		if cfg.UseAzure {
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		} else {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set: %w", coreerrors.ErrConfiguration)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = os.Getenv("OPENAI_MODEL_ID")
	}
	if modelID == "" {
		modelID = "gpt-4o"
	}

	ccfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if cfg.BaseURL != "" {
		ccfg.BaseURL = cfg.BaseURL
	}
	if cfg.UseAzure {
		ccfg.ByAzure = true
		if cfg.APIVersion != "" {
			ccfg.APIVersion = cfg.APIVersion
		} else {
			ccfg.APIVersion = "2024-02-15-preview"
		}
	}

	chatModel, err := openai.NewChatModel(ctx, ccfg)
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}

	embModel := cfg.EmbeddingModel
	if embModel == "" {
		embModel = "text-embedding-3-small"
	}
	embedder, err := einoembopenai.NewEmbedder(ctx, &einoembopenai.EmbeddingConfig{
		APIKey:  apiKey,
		Model:   embModel,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "openai"
	}

	return &OpenAIClient{
		id:        id,
		chatModel: chatModel,
		embedder:  embedder,
		models:    openAIModels(id),
	}, nil
}

func (c *OpenAIClient) ID() string            { return c.id }
func (c *OpenAIClient) Models() []types.Model { return c.models }

func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*schema.Message, error) {
	opts := []model.Option{openai.WithMaxCompletionTokens(req.MaxTokens)}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}
	msg, err := bindTools(c.chatModel).Generate(ctx, req.Messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", coreerrors.ErrTransientModel)
	}
	return msg, nil
}

func (c *OpenAIClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	opts := []model.Option{openai.WithMaxCompletionTokens(req.MaxTokens)}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}
	stream, err := bindTools(c.chatModel).Stream(ctx, req.Messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", coreerrors.ErrTransientModel)
	}
	errCh := make(chan error, 1)
	return drainStream(stream, errCh), nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", coreerrors.ErrTransientModel)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embed: empty response: %w", coreerrors.ErrTransientModel)
	}
	return vectors[0], nil
}

func (c *OpenAIClient) TestConnection(ctx context.Context) error {
	_, err := c.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: "ping"},
	}, openai.WithMaxCompletionTokens(1))
	if err != nil {
		return fmt.Errorf("openai connection test: %w", coreerrors.ErrAuthModel)
	}
	return nil
}

func openAIModels(providerID string) []types.Model {
	return []types.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "o1-mini", Name: "O1 Mini", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 65536, SupportsTools: true},
	}
}
