package modelclient

import (
	"context"
	"errors"

	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/pkg/types"
)

// mockClient implements ModelClient for testing the registry and
// plumbing without talking to any real backend.
type mockClient struct {
	id     string
	models []types.Model
}

func (m *mockClient) ID() string            { return m.id }
func (m *mockClient) Models() []types.Model { return m.models }

func (m *mockClient) Chat(ctx context.Context, req Request) (*schema.Message, error) {
	return &schema.Message{Role: schema.Assistant, Content: "mock reply"}, nil
}

func (m *mockClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, 2)
	out <- StreamChunk{Delta: "mock "}
	out <- StreamChunk{Done: true, Message: &schema.Message{Role: schema.Assistant, Content: "mock reply"}}
	close(out)
	return out, nil
}

func (m *mockClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, coreerrors.ErrCapability
}

func (m *mockClient) TestConnection(ctx context.Context) error { return nil }

func newMockClient(id string, models []types.Model) *mockClient {
	return &mockClient{id: id, models: models}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(newMockClient("test", nil))

	got, err := r.Get("test")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID() != "test" {
		t.Fatalf("expected id 'test', got %q", got.ID())
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Get("nonexistent"); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryListAndAllModels(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(newMockClient("p1", []types.Model{{ID: "m1", ProviderID: "p1"}}))
	r.Register(newMockClient("p2", []types.Model{{ID: "m2", ProviderID: "p2"}}))

	if len(r.List()) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(r.List()))
	}
	if len(r.AllModels()) != 2 {
		t.Fatalf("expected 2 models, got %d", len(r.AllModels()))
	}
}

func TestParseProviderModel(t *testing.T) {
	providerID, modelID := ParseProviderModel("anthropic/claude-sonnet-4-20250514")
	if providerID != "anthropic" || modelID != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected split: %q/%q", providerID, modelID)
	}

	providerID, modelID = ParseProviderModel("gpt-4o")
	if providerID != "" || modelID != "gpt-4o" {
		t.Fatalf("unexpected split for bare model: %q/%q", providerID, modelID)
	}
}

func TestMockClientChatAndStream(t *testing.T) {
	c := newMockClient("test", nil)
	msg, err := c.Chat(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if msg.Content != "mock reply" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}

	stream, err := c.ChatStream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	var chunks int
	for range stream {
		chunks++
	}
	if chunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", chunks)
	}
}
