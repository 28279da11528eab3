// Package sessionmgr composes a session from a Scenario: it wires an
// EventLog, rule engine, ModeratorController, agent pool and discussion
// loop together, and owns their lifecycle (create, start, pause, resume,
// end, delete). It is the one place that knows how those pieces fit
// together — callers (the server command handlers, the CLI) only ever
// talk to a Manager.
package sessionmgr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/agent"
	"github.com/roundtable/engine/internal/bus"
	"github.com/roundtable/engine/internal/collab"
	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/internal/discussion"
	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/eventstore"
	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/internal/moderator"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/pkg/types"
)

// entry bundles everything a Manager tracks for one open session.
type entry struct {
	scenario types.Scenario
	userID   string

	log        *eventlog.Log
	controller *moderator.Controller
	pool       *agent.Pool
	loop       *discussion.Loop

	outline *collab.OutlineGenerator
	judge   *collab.JudgeSystem
	summary *collab.SummaryService
	title   *collab.TitleGenerator

	unsubscribe []func()

	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns every open session's components for one process.
type Manager struct {
	store  eventstore.Store
	bus    *bus.Bus
	models *modelclient.Registry
	cfg    *types.Config

	mu       sync.RWMutex
	sessions map[string]*entry
}

// New creates a Manager. cfg may be nil, in which case engine defaults
// apply throughout.
func New(store eventstore.Store, b *bus.Bus, models *modelclient.Registry, cfg *types.Config) *Manager {
	if cfg == nil {
		cfg = &types.Config{}
	}
	return &Manager{
		store:    store,
		bus:      b,
		models:   models,
		cfg:      cfg,
		sessions: make(map[string]*entry),
	}
}

// Create composes a new session from sc and registers it in PhasePending.
// userID is an opaque tag used only by List; the discussion engine itself
// has no concept of ownership.
func (m *Manager) Create(ctx context.Context, sc types.Scenario, userID string) (*types.SessionState, error) {
	m.mu.Lock()
	if _, exists := m.sessions[sc.ID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %s already exists", sc.ID)
	}
	m.mu.Unlock()

	logCfg := eventlog.DefaultConfig()
	if m.cfg.EventLog.MaxSize > 0 {
		logCfg.MaxSize = m.cfg.EventLog.MaxSize
	}
	if m.cfg.EventLog.PruneStrategy != "" {
		logCfg.Strategy = types.PruneStrategy(m.cfg.EventLog.PruneStrategy)
	}

	log, err := eventlog.Open(ctx, sc.ID, m.store, m.bus, logCfg)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	participants := make([]string, len(sc.Participants))
	for i, p := range sc.Participants {
		participants[i] = p.Name
	}

	controller := moderator.New(moderator.Config{
		SessionID:      sc.ID,
		Topic:          sc.Topic,
		Participants:   participants,
		SpeakingOrder:  sc.SpeakingOrder,
		MaxRounds:      sc.MaxRounds,
		TurnTimeoutSec: sc.Moderator.TurnTimeoutSec,
		Intervention:   sc.Moderator.InterventionLevel,
		Phases:         sc.Phases,
		AllowInterrupt: sc.AllowInterrupt,
		MaxIdleRounds:  sc.MaxIdleRounds,
	}, log)

	defaultClient, err := m.defaultClient(sc)
	if err != nil {
		return nil, err
	}

	pool := agent.NewPool()
	pool.Open(sc.ID, sc.Topic, sc.Participants, m.summarizer(defaultClient))

	unsub := log.Bus().Subscribe(sc.ID, func(e types.Event) {
		pool.Broadcast(context.Background(), sc.ID, e)
	})

	loop := discussion.New(discussion.Config{
		SessionID:           sc.ID,
		Controller:          controller,
		Pool:                pool,
		Models:              m.models,
		Log:                 log,
		MaxSpeakersPerRound: discussion.DefaultMaxSpeakersPerRound,
		EnableStreaming:     true,
		UseIntentQueue:      true,
	})

	e := &entry{
		scenario:    sc,
		userID:      userID,
		log:         log,
		controller:  controller,
		pool:        pool,
		loop:        loop,
		outline:     collab.NewOutlineGenerator(defaultClient, log),
		judge:       collab.NewJudgeSystem(defaultClient, log),
		summary:     collab.NewSummaryService(defaultClient, log),
		title:       collab.NewTitleGenerator(defaultClient, log),
		unsubscribe: []func(){unsub},
	}
	e.unsubscribe = append(e.unsubscribe, m.wireTitleGenerator(e))

	m.mu.Lock()
	m.sessions[sc.ID] = e
	m.mu.Unlock()

	return controller.State(), nil
}

// wireTitleGenerator subscribes a background listener that asks the
// title generator to fire once enough speeches have accumulated. It is
// a no-op once TitleGenerator has already produced a title.
func (m *Manager) wireTitleGenerator(e *entry) func() {
	const minSpeeches = 3
	return e.log.Bus().SubscribeToSession(e.scenario.ID, func(ev types.Event) {
		if ev.Type != types.EventSpeechComplete {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := e.title.MaybeGenerate(ctx, e.scenario.Topic, minSpeeches); err != nil {
				logging.Warn().Str("sessionID", e.scenario.ID).Err(err).Msg("title generation failed")
			}
		}()
	})
}

// summarizer builds an agent.Summarizer that compresses evicted window
// events through a ModelClient, backing agent.Context's
// summarize-on-overflow behavior.
func (m *Manager) summarizer(client modelclient.ModelClient) agent.Summarizer {
	return func(ctx context.Context, sessionTopic string, events []types.Event) (string, error) {
		var b strings.Builder
		for _, ev := range events {
			content, _ := ev.Payload["content"].(string)
			if content == "" {
				continue
			}
			name := ev.AgentID
			if name == "" {
				name = string(ev.Type)
			}
			fmt.Fprintf(&b, "[%s]: %s\n", name, content)
		}
		if b.Len() == 0 {
			return "", nil
		}
		msg, err := client.Chat(ctx, modelclient.Request{
			Messages: []*schema.Message{
				{Role: schema.System, Content: fmt.Sprintf("Summarize the following discussion excerpt about %q in 2-3 sentences.", sessionTopic)},
				{Role: schema.User, Content: b.String()},
			},
			MaxTokens: 200,
		})
		if err != nil {
			return "", fmt.Errorf("summarize context window: %w", err)
		}
		return msg.Content, nil
	}
}

// defaultClient resolves the ModelClient used by this session's thin
// collaborators and context summarizer: the first participant's
// provider, falling back to "anthropic".
func (m *Manager) defaultClient(sc types.Scenario) (modelclient.ModelClient, error) {
	providerID := "anthropic"
	if len(sc.Participants) > 0 && sc.Participants[0].ProviderID != "" {
		providerID = sc.Participants[0].ProviderID
	}
	client, err := m.models.Get(providerID)
	if err != nil {
		return nil, fmt.Errorf("resolve default model client: %w", err)
	}
	return client, nil
}

// Get returns a snapshot of sessionID's current state.
func (m *Manager) Get(sessionID string) (*types.SessionState, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.controller.State(), nil
}

// List returns every open session's state. If userID is non-empty, it is
// filtered to sessions created with that tag.
func (m *Manager) List(userID string) []*types.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.SessionState, 0, len(m.sessions))
	for _, e := range m.sessions {
		if userID != "" && e.userID != userID {
			continue
		}
		out = append(out, e.controller.State())
	}
	return out
}

// Controller returns the moderator Controller for sessionID, so server
// command handlers can submit intents, grant turns and set intervention
// levels directly.
func (m *Manager) Controller(sessionID string) (*moderator.Controller, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.controller, nil
}

// Log returns the event log for sessionID, so observers can subscribe or
// replay.
func (m *Manager) Log(sessionID string) (*eventlog.Log, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.log, nil
}

// Start transitions sessionID to active and spawns its discussion loop.
func (m *Manager) Start(ctx context.Context, sessionID string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := e.controller.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	e.cancel = cancel
	e.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(e.done)
		if err := e.loop.Run(runCtx); err != nil {
			logging.Warn().Str("sessionID", sessionID).Err(err).Msg("discussion loop exited with error")
		}
	}()
	return nil
}

// Pause pauses sessionID's discussion loop; it resumes polling for the
// paused phase rather than being torn down.
func (m *Manager) Pause(ctx context.Context, sessionID string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return e.controller.Pause(ctx)
}

// Resume resumes a paused session.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return e.controller.Resume(ctx)
}

// End marks sessionID completed. The loop observes the terminal phase on
// its next tick and exits on its own.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return e.controller.End(ctx)
}

// Abort marks sessionID aborted with reason, same exit path as End.
func (m *Manager) Abort(ctx context.Context, sessionID, reason string) error {
	e, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return e.controller.Abort(ctx, reason)
}

// Delete forcibly stops sessionID's loop, clears its log and releases
// every component the Manager holds for it. Unlike End/Abort, this does
// not wait for the loop's natural terminal-phase exit: it cancels the
// loop's context directly so Delete returns promptly even for a session
// that is mid-turn.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionID, coreerrors.ErrNotFound)
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	if e.done != nil {
		select {
		case <-e.done:
		case <-time.After(5 * time.Second):
			logging.Warn().Str("sessionID", sessionID).Msg("discussion loop did not exit before delete timeout")
		}
	}

	for _, unsub := range e.unsubscribe {
		unsub()
	}
	e.pool.Close(sessionID)

	if err := e.log.Clear(ctx); err != nil {
		return fmt.Errorf("clear event log: %w", err)
	}
	return nil
}

// Outline asks the session's OutlineGenerator for a current outline.
func (m *Manager) Outline(ctx context.Context, sessionID string) (string, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	return e.outline.Generate(ctx, e.scenario.Topic)
}

// Judge asks the session's JudgeSystem to score the discussion so far.
func (m *Manager) Judge(ctx context.Context, sessionID string) (float64, string, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return 0, "", err
	}
	return e.judge.Score(ctx, e.scenario.Topic)
}

// Summary asks the session's SummaryService for a prose recap.
func (m *Manager) Summary(ctx context.Context, sessionID string) (string, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	return e.summary.Generate(ctx, e.scenario.Topic)
}

func (m *Manager) lookup(sessionID string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, coreerrors.ErrNotFound)
	}
	return e, nil
}
