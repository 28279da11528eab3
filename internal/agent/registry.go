package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/roundtable/engine/pkg/types"
)

// Pool owns every agent's Context for one session, keyed by agent name.
// It is the AgentContext lifecycle manager referenced by
// internal/discussion and internal/moderator: created when a session
// starts, torn down when it ends.
type Pool struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Context // sessionID -> agentName -> Context
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{sessions: make(map[string]map[string]*Context)}
}

// Open creates a Context for every participant in specs under sessionID,
// replacing any that already existed for that session.
func (p *Pool) Open(sessionID, sessionTopic string, specs []types.AgentSpec, summarizer Summarizer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byName := make(map[string]*Context, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = NewContext(spec, sessionID, sessionTopic, summarizer)
	}
	p.sessions[sessionID] = byName
}

// Get retrieves the Context for agentName within sessionID.
func (p *Pool) Get(sessionID, agentName string) (*Context, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byName, ok := p.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: no agent pool open", sessionID)
	}
	ctx, ok := byName[agentName]
	if !ok {
		return nil, fmt.Errorf("session %s: agent %s not found", sessionID, agentName)
	}
	return ctx, nil
}

// All returns every Context for sessionID.
func (p *Pool) All(sessionID string) []*Context {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byName := p.sessions[sessionID]
	out := make([]*Context, 0, len(byName))
	for _, ctx := range byName {
		out = append(out, ctx)
	}
	return out
}

// Names returns the participant names registered for sessionID.
func (p *Pool) Names(sessionID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byName := p.sessions[sessionID]
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	return names
}

// Close discards every Context for sessionID.
func (p *Pool) Close(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, sessionID)
}

// Broadcast delivers e to every agent's Context in sessionID, including
// the one that produced it; BuildMessages renders an agent's own speech
// as an assistant-role turn.
func (p *Pool) Broadcast(ctx context.Context, sessionID string, e types.Event) {
	for _, agentCtx := range p.All(sessionID) {
		_ = agentCtx.Observe(ctx, e)
	}
}
