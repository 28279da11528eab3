package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/roundtable/engine/pkg/types"
)

func TestObserveWithinWindowDoesNotSummarize(t *testing.T) {
	called := false
	summarizer := func(context.Context, string, []types.Event) (string, error) {
		called = true
		return "digest", nil
	}
	c := NewContext(types.AgentSpec{Name: "alice", MaxContextEvents: 10}, "s1", "topic", summarizer)

	for i := 0; i < 5; i++ {
		if err := c.Observe(context.Background(), types.Event{Type: types.EventSpeechComplete, AgentID: "bob"}); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}
	if called {
		t.Fatal("summarizer should not run before the window overflows")
	}
	if len(c.Window()) != 5 {
		t.Fatalf("expected 5 retained events, got %d", len(c.Window()))
	}
}

func TestObserveOverflowTriggersSummarization(t *testing.T) {
	var compressedCount int
	summarizer := func(_ context.Context, topic string, events []types.Event) (string, error) {
		compressedCount = len(events)
		return fmt.Sprintf("summarized %d events about %s", len(events), topic), nil
	}
	c := NewContext(types.AgentSpec{Name: "alice", MaxContextEvents: 4}, "s1", "topic", summarizer)

	for i := 0; i < 10; i++ {
		if err := c.Observe(context.Background(), types.Event{Type: types.EventSpeechComplete, AgentID: "bob"}); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}

	if compressedCount == 0 {
		t.Fatal("expected summarizer to have been invoked")
	}
	if len(c.Window()) > 4 {
		t.Fatalf("expected window to stay within bound, got %d", len(c.Window()))
	}
	if c.Summary() == "" {
		t.Fatal("expected a rolling summary after overflow")
	}
}

func TestBuildMessagesRendersSpeechFromOthersVsSelf(t *testing.T) {
	c := NewContext(types.AgentSpec{Name: "alice", SystemPrompt: "be helpful"}, "s1", "topic", nil)
	c.Observe(context.Background(), types.Event{
		Type: types.EventSpeechComplete, AgentID: "bob",
		Payload: map[string]any{"content": "hello"},
	})
	c.Observe(context.Background(), types.Event{
		Type: types.EventSpeechComplete, AgentID: "alice",
		Payload: map[string]any{"content": "hi back"},
	})

	messages := c.BuildMessages()
	if len(messages) != 3 {
		t.Fatalf("expected system + 2 turns, got %d", len(messages))
	}
	if messages[1].Content != "[bob]: hello" {
		t.Fatalf("expected bob's turn to be prefixed, got %q", messages[1].Content)
	}
	if messages[2].Content != "hi back" {
		t.Fatalf("expected alice's own turn unprefixed, got %q", messages[2].Content)
	}
}

func TestPoolOpenGetClose(t *testing.T) {
	p := NewPool()
	specs := []types.AgentSpec{{Name: "alice"}, {Name: "bob"}}
	p.Open("s1", "topic", specs, nil)

	ctx, err := p.Get("s1", "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ctx.Spec().Name != "alice" {
		t.Fatalf("expected alice, got %s", ctx.Spec().Name)
	}
	if len(p.Names("s1")) != 2 {
		t.Fatalf("expected 2 names, got %d", len(p.Names("s1")))
	}

	p.Close("s1")
	if _, err := p.Get("s1", "alice"); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestVisibilityFilter(t *testing.T) {
	f := NewVisibilityFilter("speech.*", "session.**")
	if !f.Allows(types.EventSpeechComplete) {
		t.Fatal("expected speech.complete to be visible")
	}
	if !f.Allows(types.EventSessionStarted) {
		t.Fatal("expected session.started to be visible")
	}
	if f.Allows(types.EventJudgeScored) {
		t.Fatal("expected judge.scored to be filtered out")
	}

	open := NewVisibilityFilter()
	if !open.Allows(types.EventJudgeScored) {
		t.Fatal("expected an empty filter to allow everything")
	}
}
