// Package agent implements the per-participant AgentContext: the
// bounded, private window of event history each agent sees when the
// discussion loop asks it to speak, including the summarize-on-overflow
// behavior that keeps that window within its configured size.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/pkg/types"
)

// DefaultMaxContextEvents is the AgentContext window size used when an
// AgentSpec doesn't set MaxContextEvents.
const DefaultMaxContextEvents = 50

// Summarizer compresses a run of events into a short text digest, used by
// Context.observe when the window overflows. Implementations typically
// call a ModelClient (see internal/collab.SummaryService), but tests can
// supply a trivial one.
type Summarizer func(ctx context.Context, sessionTopic string, events []types.Event) (string, error)

// Context is one agent's private view of a session: the events it has
// observed, trimmed to MaxContextEvents and collapsed into a summary once
// that bound is exceeded, plus whatever it has itself contributed.
type Context struct {
	mu sync.Mutex

	spec         types.AgentSpec
	sessionID    string
	sessionTopic string

	maxEvents  int
	window     []types.Event
	summary    string // rolling prose summary of everything evicted from window
	summarizer Summarizer
}

// NewContext creates an AgentContext for spec within sessionID.
func NewContext(spec types.AgentSpec, sessionID, sessionTopic string, summarizer Summarizer) *Context {
	maxEvents := spec.MaxContextEvents
	if maxEvents <= 0 {
		maxEvents = DefaultMaxContextEvents
	}
	return &Context{
		spec:         spec,
		sessionID:    sessionID,
		sessionTopic: sessionTopic,
		maxEvents:    maxEvents,
		summarizer:   summarizer,
	}
}

// Spec returns the agent's static configuration.
func (c *Context) Spec() types.AgentSpec {
	return c.spec
}

// Observe appends e to the context's window, compressing the oldest half
// of the window into the rolling summary once the window would exceed
// MaxContextEvents. Every event passed in is appended; Observe applies no
// visibility filter of its own.
func (c *Context) Observe(ctx context.Context, e types.Event) error {
	c.mu.Lock()
	c.window = append(c.window, e)
	overflow := len(c.window) > c.maxEvents
	var toCompress []types.Event
	if overflow {
		keep := c.maxEvents / 2
		if keep < 1 {
			keep = 1
		}
		toCompress = append([]types.Event(nil), c.window[:len(c.window)-keep]...)
		c.window = append([]types.Event(nil), c.window[len(c.window)-keep:]...)
	}
	summarizer := c.summarizer
	sessionTopic := c.sessionTopic
	c.mu.Unlock()

	if len(toCompress) == 0 {
		return nil
	}
	if summarizer == nil {
		return nil
	}

	digest, err := summarizer(ctx, sessionTopic, toCompress)
	if err != nil {
		return fmt.Errorf("compress agent context: %w", err)
	}

	c.mu.Lock()
	if c.summary == "" {
		c.summary = digest
	} else {
		c.summary = c.summary + "\n" + digest
	}
	c.mu.Unlock()
	return nil
}

// Summary returns the rolling digest of everything evicted from the
// window so far (empty if nothing has overflowed yet).
func (c *Context) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Window returns a snapshot of the raw events currently retained.
func (c *Context) Window() []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Event, len(c.window))
	copy(out, c.window)
	return out
}

// BuildMessages renders this agent's context as an eino message history
// suitable for a ModelClient.Chat/ChatStream call: a system message built
// from the agent's persona and rolling summary, followed by the retained
// window translated into user/assistant turns from this agent's point of
// view (its own past speech becomes assistant turns, everyone else's
// becomes user turns prefixed with their agent id).
func (c *Context) BuildMessages() []*schema.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := []*schema.Message{
		{Role: schema.System, Content: c.systemPromptLocked()},
	}
	for _, e := range c.window {
		msg := eventToMessage(c.spec.Name, e)
		if msg != nil {
			messages = append(messages, msg)
		}
	}
	return messages
}

func (c *Context) systemPromptLocked() string {
	prompt := c.spec.SystemPrompt
	if prompt == "" {
		prompt = fmt.Sprintf("You are %s, a participant in a multi-party discussion.", c.spec.Name)
	}
	prompt += fmt.Sprintf("\n\nDiscussion topic: %s", c.sessionTopic)
	if c.summary != "" {
		prompt += "\n\nSummary of earlier discussion you may have lost track of:\n" + c.summary
	}
	return prompt
}

func eventToMessage(selfName string, e types.Event) *schema.Message {
	switch e.Type {
	case types.EventSpeechComplete:
		content, _ := e.Payload["content"].(string)
		if content == "" {
			return nil
		}
		if e.AgentID == selfName {
			return &schema.Message{Role: schema.Assistant, Content: content}
		}
		return &schema.Message{Role: schema.User, Content: fmt.Sprintf("[%s]: %s", e.AgentID, content)}
	case types.EventModeratorPrompt:
		content, _ := e.Payload["content"].(string)
		if content == "" {
			return nil
		}
		return &schema.Message{Role: schema.User, Content: fmt.Sprintf("[moderator]: %s", content)}
	default:
		return nil
	}
}
