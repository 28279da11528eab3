package discussion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/agent"
	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/internal/moderator"
	"github.com/roundtable/engine/pkg/types"
)

// fakeClient is a deterministic ModelClient stand-in so the loop can be
// exercised without a live backend.
type fakeClient struct {
	id       string
	replyFmt string
	calls    int
}

func (f *fakeClient) ID() string              { return f.id }
func (f *fakeClient) Models() []types.Model   { return nil }
func (f *fakeClient) Chat(ctx context.Context, req modelclient.Request) (*schema.Message, error) {
	f.calls++
	return &schema.Message{Role: schema.Assistant, Content: fmt.Sprintf(f.replyFmt, f.calls)}, nil
}
func (f *fakeClient) ChatStream(ctx context.Context, req modelclient.Request) (<-chan modelclient.StreamChunk, error) {
	msg, _ := f.Chat(ctx, req)
	out := make(chan modelclient.StreamChunk, 2)
	out <- modelclient.StreamChunk{Delta: msg.Content}
	out <- modelclient.StreamChunk{Done: true, Message: msg}
	close(out)
	return out, nil
}
func (f *fakeClient) Embed(ctx context.Context, text string) ([]float64, error) { return nil, nil }
func (f *fakeClient) TestConnection(ctx context.Context) error                 { return nil }

func newTestLoop(t *testing.T, order types.SpeakingOrder, maxRounds int) (*Loop, *eventlog.Log) {
	t.Helper()
	store := eventstore.NewMemoryStore()
	b := bus.New()
	log, err := eventlog.Open(context.Background(), "s1", store, b, eventlog.DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctrl := moderator.New(moderator.Config{
		SessionID:     "s1",
		Topic:         "test topic",
		Participants:  []string{"alice", "bob"},
		SpeakingOrder: order,
		MaxRounds:     maxRounds,
	}, log)

	pool := agent.NewPool()
	pool.Open("s1", "test topic", []types.AgentSpec{{Name: "alice"}, {Name: "bob"}}, nil)

	registry := modelclient.NewRegistry(nil)
	registry.Register(&fakeClient{id: "anthropic", replyFmt: "reply %d"})

	loop := New(Config{
		SessionID:           "s1",
		Controller:          ctrl,
		Pool:                pool,
		Models:              registry,
		Log:                 log,
		MaxSpeakersPerRound: 2,
		SpeakInterval:       time.Millisecond,
		NoProgressTimeout:   time.Second,
		EnableStreaming:     true,
		UseIntentQueue:      true,
	})

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return loop, log
}

func TestRunCompletesRoundRobinSession(t *testing.T) {
	loop, log := newTestLoop(t, types.SpeakingOrderRoundRobin, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	speeches := log.GetByType(types.EventSpeechComplete)
	if len(speeches) != 2 {
		t.Fatalf("expected 2 speeches, got %d", len(speeches))
	}
	if speeches[0].AgentID == speeches[1].AgentID {
		t.Fatalf("expected alternating speakers, got %s twice", speeches[0].AgentID)
	}

	ended := log.GetByType(types.EventSessionEnded)
	if len(ended) != 1 {
		t.Fatalf("expected session to end after max rounds, got %d end events", len(ended))
	}
}

func TestRunPublishesStreamingChunks(t *testing.T) {
	loop, log := newTestLoop(t, types.SpeakingOrderRoundRobin, 1)

	var chunks int

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	unsub := log.Bus().SubscribeToSession("s1", func(e types.Event) {
		if e.Type == types.EventSpeechChunk {
			chunks++
		}
	})
	defer unsub()

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if chunks == 0 {
		t.Fatal("expected at least one speech.chunk transient event")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	loop, _ := newTestLoop(t, types.SpeakingOrderRoundRobin, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := loop.Run(ctx); err == nil {
		t.Fatal("expected Run to return an error for a cancelled context")
	}
}
