package sessionmgr_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/internal/sessionmgr"
	"github.com/roundtable/engine/pkg/types"
)

type fakeClient struct {
	id    string
	calls int
}

func (f *fakeClient) ID() string                            { return f.id }
func (f *fakeClient) Models() []types.Model                 { return nil }
func (f *fakeClient) TestConnection(context.Context) error  { return nil }

func (f *fakeClient) Chat(ctx context.Context, req modelclient.Request) (*schema.Message, error) {
	f.calls++
	return &schema.Message{Role: schema.Assistant, Content: fmt.Sprintf("reply %d", f.calls)}, nil
}

func (f *fakeClient) ChatStream(ctx context.Context, req modelclient.Request) (<-chan modelclient.StreamChunk, error) {
	msg, _ := f.Chat(ctx, req)
	ch := make(chan modelclient.StreamChunk, 2)
	ch <- modelclient.StreamChunk{Delta: msg.Content}
	ch <- modelclient.StreamChunk{Done: true, Message: msg}
	close(ch)
	return ch, nil
}

func (f *fakeClient) Embed(context.Context, string) ([]float64, error) {
	return nil, fmt.Errorf("embed not supported")
}

func newTestManager() *sessionmgr.Manager {
	store := eventstore.NewMemoryStore()
	b := bus.New()
	registry := modelclient.NewRegistry(nil)
	registry.Register(&fakeClient{id: "anthropic"})
	return sessionmgr.New(store, b, registry, nil)
}

func testScenario(id string) types.Scenario {
	return types.Scenario{
		ID:            id,
		Topic:         "test topic",
		SpeakingOrder: types.SpeakingOrderRoundRobin,
		MaxRounds:     1,
		Participants: []types.AgentSpec{
			{Name: "alice", ProviderID: "anthropic"},
			{Name: "bob", ProviderID: "anthropic"},
		},
	}
}

func TestManagerCreateGetList(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	state, err := m.Create(ctx, testScenario("s1"), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if state.Phase != types.PhasePending {
		t.Errorf("phase = %s, want pending", state.Phase)
	}

	got, err := m.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.SessionID != "s1" {
		t.Errorf("sessionID = %q", got.SessionID)
	}

	all := m.List("")
	if len(all) != 1 {
		t.Fatalf("List(\"\") = %d sessions, want 1", len(all))
	}
	mine := m.List("user-1")
	if len(mine) != 1 {
		t.Fatalf("List(user-1) = %d sessions, want 1", len(mine))
	}
	others := m.List("user-2")
	if len(others) != 0 {
		t.Fatalf("List(user-2) = %d sessions, want 0", len(others))
	}
}

func TestManagerStartRunsToCompletion(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := m.Create(ctx, testScenario("s2"), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(ctx, "s2"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err := m.Get("s2")
		if err != nil {
			t.Fatal(err)
		}
		if state.IsTerminal() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session did not reach a terminal phase in time")
}

func TestManagerPauseResume(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.Create(ctx, testScenario("s3"), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(ctx, "s3"); err != nil {
		t.Fatal(err)
	}
	if err := m.Pause(ctx, "s3"); err != nil {
		t.Fatal(err)
	}
	state, err := m.Get("s3")
	if err != nil {
		t.Fatal(err)
	}
	if state.Phase != types.PhasePaused {
		t.Errorf("phase = %s, want paused", state.Phase)
	}
	if err := m.Resume(ctx, "s3"); err != nil {
		t.Fatal(err)
	}
}

func TestManagerDeleteRemovesSession(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.Create(ctx, testScenario("s4"), ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "s4"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get("s4"); err == nil {
		t.Error("expected error getting deleted session")
	}
}

func TestManagerOutlineJudgeSummary(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.Create(ctx, testScenario("s5"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Outline(ctx, "s5"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Judge(ctx, "s5"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Summary(ctx, "s5"); err != nil {
		t.Fatal(err)
	}
}
