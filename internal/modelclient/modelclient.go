// Package modelclient implements an abstract chat/stream/embed
// interface in front of the concrete LLM backends agents actually speak
// through.
package modelclient

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/pkg/types"
)

// Request describes one completion call.
type Request struct {
	Model       string
	Messages    []*schema.Message
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// StreamChunk is one piece of a streaming completion.
type StreamChunk struct {
	Delta   string
	Done    bool
	Message *schema.Message // populated on the final chunk
}

// ModelClient is the capability every backend (Anthropic, OpenAI, Ark,
// Bedrock) implements. Chat and ChatStream both drive a single completion
// call; ChatStream additionally surfaces incremental deltas so the
// discussion loop can publish speech.chunk events as they arrive.
type ModelClient interface {
	ID() string
	Models() []types.Model

	Chat(ctx context.Context, req Request) (*schema.Message, error)
	ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, error)
	Embed(ctx context.Context, text string) ([]float64, error)

	// TestConnection verifies credentials/reachability without spending a
	// full completion.
	TestConnection(ctx context.Context) error
}

// drainStream converts an eino StreamReader into a channel of StreamChunk,
// closing the channel once the stream ends. The last chunk sent always has
// Done set and carries the whole accumulated message. A read error other
// than io.EOF ends the stream early: an error wrapping
// coreerrors.ErrTransientModel is sent on errCh, and the final Done chunk
// then carries only the content received before the error.
func drainStream(stream *schema.StreamReader[*schema.Message], errCh chan<- error) <-chan StreamChunk {
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		var full string
		var last *schema.Message
		for {
			msg, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errCh <- fmt.Errorf("stream recv: %w", coreerrors.ErrTransientModel)
				}
				break
			}
			full += msg.Content
			last = msg
			out <- StreamChunk{Delta: msg.Content}
		}
		if last != nil {
			final := *last
			final.Content = full
			out <- StreamChunk{Done: true, Message: &final}
		} else {
			out <- StreamChunk{Done: true, Message: &schema.Message{Role: schema.Assistant, Content: full}}
		}
	}()
	return out
}

// bindTools is a hook point kept for symmetry with the rest of the
// provider construction pipeline; the discussion engine's agents never
// call tools, so this always returns m unchanged. Kept as a named step
// (rather than inlined away) so a future capability that does need
// tool-calling support can slot in without touching every backend's
// Chat/ChatStream implementation.
func bindTools(m model.ToolCallingChatModel) model.ToolCallingChatModel {
	return m
}
