package server

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/internal/sessionmgr"
	"github.com/roundtable/engine/pkg/types"
)

type mockResponseWriter struct {
	*httptest.ResponseRecorder
	flushed int
}

func (m *mockResponseWriter) Flush() {
	m.flushed++
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{ResponseRecorder: httptest.NewRecorder()}
}

type noFlushWriter struct{}

func (n *noFlushWriter) Header() http.Header       { return http.Header{} }
func (n *noFlushWriter) Write([]byte) (int, error) { return 0, nil }
func (n *noFlushWriter) WriteHeader(int)           {}

func TestNewSSEWriter(t *testing.T) {
	w := newMockResponseWriter()
	sse, err := newSSEWriter(w)
	if err != nil {
		t.Fatalf("newSSEWriter failed: %v", err)
	}
	if sse == nil {
		t.Fatal("SSE writer should not be nil")
	}
}

func TestNewSSEWriter_NoFlusher(t *testing.T) {
	_, err := newSSEWriter(&noFlushWriter{})
	if err == nil {
		t.Error("expected error for writer without Flusher")
	}
}

func TestSSEWriter_WriteEvent(t *testing.T) {
	w := newMockResponseWriter()
	sse, _ := newSSEWriter(w)

	if err := sse.writeEvent("test", map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("writeEvent failed: %v", err)
	}

	body := w.Body.String()
	if !strings.Contains(body, "event: test\n") {
		t.Error("expected event line")
	}
	if !strings.Contains(body, `"message":"hello"`) {
		t.Error("expected data to contain message")
	}
	if w.flushed == 0 {
		t.Error("expected Flush to be called")
	}
}

func TestSSEWriter_WriteHeartbeat(t *testing.T) {
	w := newMockResponseWriter()
	sse, _ := newSSEWriter(w)

	sse.writeHeartbeat()

	body := w.Body.String()
	if !strings.Contains(body, ": heartbeat\n") {
		t.Errorf("expected heartbeat comment, got: %s", body)
	}
	if w.flushed == 0 {
		t.Error("expected Flush to be called")
	}
}

// newSSETestServer builds a Server with a started two-participant
// round-robin session, bounded to maxRounds so the discussion loop (and
// therefore the SSE stream it feeds) reaches a terminal phase quickly.
func newSSETestServer(t *testing.T) (*Server, string) {
	t.Helper()
	store := eventstore.NewMemoryStore()
	b := bus.New()
	registry := modelclient.NewRegistry(nil)
	registry.Register(&fakeSSEClient{id: "anthropic"})
	mgr := sessionmgr.New(store, b, registry, nil)

	sc := types.Scenario{
		ID:            "sse-1",
		Topic:         "sse test",
		SpeakingOrder: types.SpeakingOrderRoundRobin,
		MaxRounds:     1,
		Participants: []types.AgentSpec{
			{Name: "alice", ProviderID: "anthropic"},
			{Name: "bob", ProviderID: "anthropic"},
		},
	}
	ctx := context.Background()
	if _, err := mgr.Create(ctx, sc, ""); err != nil {
		t.Fatal(err)
	}

	return New(DefaultConfig(), mgr), sc.ID
}

func TestSessionEvents_UnknownSession(t *testing.T) {
	srv, _ := newSSETestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/session/nope/events", nil)
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSessionEvents_StreamsStateUpdateAndWorldEvents(t *testing.T) {
	srv, sessionID := newSSETestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := srv.mgr.Start(ctx, sessionID); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/session/"+sessionID+"/events", nil).WithContext(ctx)
	rec := newMockResponseWriter()

	done := make(chan struct{})
	go func() {
		srv.Router().ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		cancel()
		<-done
	}

	body := rec.Body.String()
	scanner := bufio.NewScanner(strings.NewReader(body))
	var sawStateUpdate, sawSimulationEnded bool
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: state_update") {
			sawStateUpdate = true
		}
		if strings.HasPrefix(line, "event: simulation_ended") {
			sawSimulationEnded = true
		}
	}
	if !sawStateUpdate {
		t.Error("expected at least one state_update frame")
	}
	if !sawSimulationEnded {
		t.Error("expected a simulation_ended frame once the session completed")
	}
}

type fakeSSEClient struct {
	id    string
	calls int
}

func (f *fakeSSEClient) ID() string                           { return f.id }
func (f *fakeSSEClient) Models() []types.Model                { return nil }
func (f *fakeSSEClient) TestConnection(context.Context) error { return nil }

func (f *fakeSSEClient) Chat(ctx context.Context, req modelclient.Request) (*schema.Message, error) {
	f.calls++
	return &schema.Message{Role: schema.Assistant, Content: fmt.Sprintf("reply %d", f.calls)}, nil
}

func (f *fakeSSEClient) ChatStream(ctx context.Context, req modelclient.Request) (<-chan modelclient.StreamChunk, error) {
	msg, _ := f.Chat(ctx, req)
	ch := make(chan modelclient.StreamChunk, 2)
	ch <- modelclient.StreamChunk{Delta: msg.Content}
	ch <- modelclient.StreamChunk{Done: true, Message: msg}
	close(ch)
	return ch, nil
}

func (f *fakeSSEClient) Embed(context.Context, string) ([]float64, error) {
	return nil, fmt.Errorf("embed not supported")
}
