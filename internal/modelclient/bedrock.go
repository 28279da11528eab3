package modelclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/pkg/types"
)

// BedrockConfig configures the Amazon Bedrock-backed client. Credentials
// follow the AWS SDK v2 default chain (env vars, shared profile, IAM
// role); Region and Profile only override discovery, they are never
// required.
type BedrockConfig struct {
	ID      string
	Region  string
	Profile string
	Model   string // Bedrock model ID, e.g. "us.anthropic.claude-opus-4-5-20251101-v1:0"
}

// BedrockClient implements ModelClient against Amazon Bedrock's
// ConverseStream API. Unlike the other backends this talks to the AWS
// SDK directly: none of the wired eino-ext model packages cover
// Bedrock, so messages are converted by hand instead of going through
// eino's ToolCallingChatModel.
type BedrockClient struct {
	id      string
	client  *bedrockruntime.Client
	modelID string
	models  []types.Model
}

// NewBedrockClient creates a BedrockClient.
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*BedrockClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("bedrock model id not set: %w", coreerrors.ErrConfiguration)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", coreerrors.ErrConfiguration)
	}

	id := cfg.ID
	if id == "" {
		id = "bedrock"
	}

	return &BedrockClient{
		id:      id,
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.Model,
		models:  bedrockModels(id, cfg.Model),
	}, nil
}

func (c *BedrockClient) ID() string            { return c.id }
func (c *BedrockClient) Models() []types.Model { return c.models }

func (c *BedrockClient) Chat(ctx context.Context, req Request) (*schema.Message, error) {
	input := c.buildInput(req)
	resp, err := c.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", coreerrors.ErrTransientModel)
	}
	out, ok := resp.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock converse: unexpected output: %w", coreerrors.ErrTransientModel)
	}
	return &schema.Message{Role: schema.Assistant, Content: bedrockBlocksToText(out.Value.Content)}, nil
}

func (c *BedrockClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(c.modelID),
		Messages:        convertToBedrockMessages(req.Messages),
		System:          convertToBedrockSystem(req.Messages),
		InferenceConfig: bedrockInferenceConfig(req),
	}
	resp, err := c.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse stream: %w", coreerrors.ErrTransientModel)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		stream := resp.GetStream()
		defer stream.Close()
		var full string
		for event := range stream.Events() {
			if delta, ok := event.(*brtypes.ConverseStreamOutputMemberContentBlockDelta); ok {
				if text, ok := delta.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok {
					full += text.Value
					out <- StreamChunk{Delta: text.Value}
				}
			}
		}
		out <- StreamChunk{Done: true, Message: &schema.Message{Role: schema.Assistant, Content: full}}
	}()
	return out, nil
}

func (c *BedrockClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("bedrock: embedding not supported: %w", coreerrors.ErrCapability)
}

func (c *BedrockClient) TestConnection(ctx context.Context) error {
	_, err := c.Chat(ctx, Request{
		Messages:  []*schema.Message{{Role: schema.User, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("bedrock connection test: %w", coreerrors.ErrAuthModel)
	}
	return nil
}

func (c *BedrockClient) buildInput(req Request) *bedrockruntime.ConverseInput {
	return &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.modelID),
		Messages:        convertToBedrockMessages(req.Messages),
		System:          convertToBedrockSystem(req.Messages),
		InferenceConfig: bedrockInferenceConfig(req),
	}
}

func bedrockInferenceConfig(req Request) *brtypes.InferenceConfiguration {
	ic := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		v := int32(req.MaxTokens)
		ic.MaxTokens = &v
	}
	if req.Temperature > 0 {
		v := float32(req.Temperature)
		ic.Temperature = &v
	}
	return ic
}

func convertToBedrockSystem(messages []*schema.Message) []brtypes.SystemContentBlock {
	var blocks []brtypes.SystemContentBlock
	for _, m := range messages {
		if m.Role == schema.System {
			blocks = append(blocks, &brtypes.SystemContentBlockMemberText{Value: m.Content})
		}
	}
	return blocks
}

func convertToBedrockMessages(messages []*schema.Message) []brtypes.Message {
	var out []brtypes.Message
	for _, m := range messages {
		var role brtypes.ConversationRole
		switch m.Role {
		case schema.System:
			continue
		case schema.Assistant:
			role = brtypes.ConversationRoleAssistant
		default:
			role = brtypes.ConversationRoleUser
		}
		out = append(out, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return out
}

func bedrockBlocksToText(blocks []brtypes.ContentBlock) string {
	var text string
	for _, b := range blocks {
		if t, ok := b.(*brtypes.ContentBlockMemberText); ok {
			text += t.Value
		}
	}
	return text
}

func bedrockModels(providerID, modelID string) []types.Model {
	return []types.Model{
		{ID: modelID, Name: "Bedrock Model", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: false},
	}
}
