// Package discussion implements the per-session scheduler that drives a
// live deliberation: producing auto-intents, picking a speaker, invoking
// that speaker's model (streaming chunks as transient events), and
// advancing rounds until the session ends.
package discussion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/agent"
	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/internal/moderator"
	"github.com/roundtable/engine/pkg/types"
)

const (
	// DefaultMaxSpeakersPerRound caps how many utterances happen before the
	// loop forces a round advance, even if nobody exhausted the queue.
	DefaultMaxSpeakersPerRound = 5
	// DefaultSpeakInterval is the pause between turns.
	DefaultSpeakInterval = time.Second
	// DefaultNoProgressTimeout aborts a session that has gone silent.
	DefaultNoProgressTimeout = 60 * time.Second
	// DefaultMaxTokens bounds a single turn's completion.
	DefaultMaxTokens = 1024

	// RetryInitialInterval is the first back-off delay after a failed
	// model call.
	RetryInitialInterval = time.Second
	// RetryMaxInterval caps the back-off delay.
	RetryMaxInterval = 15 * time.Second
	// RetryMaxElapsedTime bounds total retry time for a single turn before
	// the loop gives up on that speaker and moves on.
	RetryMaxElapsedTime = 45 * time.Second
)

// Config wires a Loop to the session components it schedules across.
type Config struct {
	SessionID string

	Controller *moderator.Controller
	Pool       *agent.Pool
	Models     *modelclient.Registry
	Log        *eventlog.Log

	MaxSpeakersPerRound int
	SpeakInterval       time.Duration
	NoProgressTimeout   time.Duration
	EnableStreaming     bool
	UseIntentQueue      bool
}

// Loop drives one session's discussion until it completes, aborts, or its
// context is cancelled.
type Loop struct {
	cfg Config

	mu               sync.Mutex
	speakersInRound  int
	autoIntentsRound int // last round ensureAutoIntents ran for; -1 means never
	lastProgress     time.Time
}

// New creates a Loop for cfg. Zero-value interval/timeout fields fall
// back to the package defaults.
func New(cfg Config) *Loop {
	if cfg.MaxSpeakersPerRound <= 0 {
		cfg.MaxSpeakersPerRound = DefaultMaxSpeakersPerRound
	}
	if cfg.SpeakInterval <= 0 {
		cfg.SpeakInterval = DefaultSpeakInterval
	}
	if cfg.NoProgressTimeout <= 0 {
		cfg.NoProgressTimeout = DefaultNoProgressTimeout
	}
	return &Loop{cfg: cfg, autoIntentsRound: -1, lastProgress: time.Now()}
}

// Run executes the scheduler until the session reaches a terminal phase
// or ctx is cancelled. It never returns an error for an ordinary session
// end; errors indicate the loop was forced to stop (context cancelled,
// the session aborted, or it could not make progress).
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		state := l.cfg.Controller.State()
		if state.Phase == types.PhasePaused {
			if !sleepCtx(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}
		if state.IsTerminal() {
			return nil
		}
		if time.Since(l.lastProgress) > l.cfg.NoProgressTimeout {
			_ = l.cfg.Controller.Abort(ctx, "no progress")
			return fmt.Errorf("session %s aborted: no progress", l.cfg.SessionID)
		}

		if l.cfg.Controller.CheckTimeout(time.Now()) {
			if _, err := l.cfg.Log.Append(ctx, types.EventSpeakerTimeout, state.CurrentSpeaker, map[string]any{
				"action":  "SPEAKER_TIMEOUT",
				"agentID": state.CurrentSpeaker,
			}, false); err != nil {
				logging.Error().Err(err).Str("sessionID", l.cfg.SessionID).Msg("speaker timeout append failed")
			}
			_ = l.cfg.Controller.CompleteTurn(ctx)
		}

		speakerID := ""
		var fromIntent bool
		if res := l.cfg.Controller.EvaluateIntervention(ctx); res.Nominated {
			speakerID = res.AgentID
		}
		if speakerID == "" && l.cfg.UseIntentQueue {
			l.ensureAutoIntents(ctx, state)
			if next, ok := l.cfg.Controller.Queue().Pop(); ok {
				if err := l.cfg.Controller.GrantTurnTo(ctx, next.AgentID); err == nil {
					speakerID = next.AgentID
					fromIntent = true
				}
			}
		}
		if speakerID == "" {
			granted, ok, err := l.cfg.Controller.GrantNextTurn(ctx)
			if err != nil {
				return fmt.Errorf("grant next turn: %w", err)
			}
			if !ok {
				l.cfg.Controller.NoteIdle()
				if !sleepCtx(ctx, l.cfg.SpeakInterval) {
					return ctx.Err()
				}
				continue
			}
			speakerID = granted
		}

		if err := l.runTurn(ctx, speakerID, fromIntent); err != nil {
			logging.Error().Err(err).Str("sessionID", l.cfg.SessionID).Str("agentID", speakerID).Msg("turn failed")
			if !sleepCtx(ctx, l.cfg.SpeakInterval) {
				return ctx.Err()
			}
			continue
		}

		l.lastProgress = time.Now()
		l.mu.Lock()
		l.speakersInRound++
		overRound := l.speakersInRound >= l.cfg.MaxSpeakersPerRound
		l.mu.Unlock()
		if overRound {
			l.mu.Lock()
			l.speakersInRound = 0
			l.mu.Unlock()
			if err := l.cfg.Controller.AdvanceRound(ctx); err != nil {
				return fmt.Errorf("advance round: %w", err)
			}
		}

		if !sleepCtx(ctx, l.cfg.SpeakInterval) {
			return ctx.Err()
		}
	}
}

// runTurn invokes the granted speaker's model, streaming chunks as
// transient events, then appends the finished utterance to the log and
// completes the turn.
func (l *Loop) runTurn(ctx context.Context, agentID string, fromIntent bool) error {
	agentCtx, err := l.cfg.Pool.Get(l.cfg.SessionID, agentID)
	if err != nil {
		return fmt.Errorf("turn for %s: %w", agentID, err)
	}
	spec := agentCtx.Spec()
	client, err := l.clientFor(spec)
	if err != nil {
		return fmt.Errorf("resolve model client for %s: %w", agentID, err)
	}

	l.publishTransient(ctx, types.EventSpeechStart, agentID, nil)

	content, err := l.generate(ctx, agentCtx, client, spec, agentID)
	if err != nil {
		l.publishTransient(ctx, types.EventSpeechFailed, agentID, map[string]any{"error": err.Error()})
		return err
	}

	if err := l.cfg.Controller.ValidateSpeech(agentID); err != nil {
		_ = l.cfg.Controller.CompleteTurn(ctx)
		return fmt.Errorf("validate speech for %s: %w", agentID, err)
	}

	if _, err := l.cfg.Log.Append(ctx, types.EventSpeechComplete, agentID, map[string]any{
		"agentID":    agentID,
		"agentName":  spec.Name,
		"content":    content,
		"fromIntent": fromIntent,
	}, false); err != nil {
		return fmt.Errorf("append speech: %w", err)
	}

	return l.cfg.Controller.RecordSpeech(ctx, agentID)
}

// generate runs one completion for agentCtx's turn, retrying transient
// failures with back-off. When streaming is enabled each delta is
// published as a speech.chunk transient event before the final content
// is returned.
func (l *Loop) generate(ctx context.Context, agentCtx *agent.Context, client modelclient.ModelClient, spec types.AgentSpec, agentID string) (string, error) {
	req := modelclient.Request{
		Messages:    agentCtx.BuildMessages(),
		MaxTokens:   DefaultMaxTokens,
		Temperature: spec.Temperature,
		TopP:        spec.TopP,
	}

	b := newRetryBackoff(ctx)
	for {
		content, err := l.attempt(ctx, client, req, agentID)
		if err == nil {
			return content, nil
		}
		next := b.NextBackOff()
		if next == backoff.Stop {
			return "", err
		}
		if !sleepCtx(ctx, next) {
			return "", ctx.Err()
		}
	}
}

func (l *Loop) attempt(ctx context.Context, client modelclient.ModelClient, req modelclient.Request, agentID string) (string, error) {
	if !l.cfg.EnableStreaming {
		msg, err := client.Chat(ctx, req)
		if err != nil {
			return "", err
		}
		return msg.Content, nil
	}

	stream, err := client.ChatStream(ctx, req)
	if err != nil {
		return "", err
	}
	var accumulated strings.Builder
	for chunk := range stream {
		if chunk.Done {
			if chunk.Message != nil {
				return chunk.Message.Content, nil
			}
			return accumulated.String(), nil
		}
		accumulated.WriteString(chunk.Delta)
		l.publishTransient(ctx, types.EventSpeechChunk, agentID, map[string]any{
			"chunk":      chunk.Delta,
			"accumulated": accumulated.String(),
		})
	}
	return accumulated.String(), nil
}

// ensureAutoIntents asks every idle, auto-participating agent once per
// round whether it wants to speak, fanning the decision calls out
// concurrently. Declines (nil intent) are dropped silently.
func (l *Loop) ensureAutoIntents(ctx context.Context, state *types.SessionState) {
	l.mu.Lock()
	if l.autoIntentsRound == state.CurrentRound || l.cfg.Controller.Queue().Len() > 0 {
		l.mu.Unlock()
		return
	}
	l.autoIntentsRound = state.CurrentRound
	l.mu.Unlock()

	names := l.cfg.Pool.Names(l.cfg.SessionID)
	pending := make(map[string]bool)
	for _, i := range l.cfg.Controller.Queue().List() {
		pending[i.AgentID] = true
	}

	var wg sync.WaitGroup
	for _, name := range names {
		if name == state.CurrentSpeaker || pending[name] {
			continue
		}
		agentCtx, err := l.cfg.Pool.Get(l.cfg.SessionID, name)
		if err != nil || !agentCtx.Spec().AutoParticipate {
			continue
		}
		wg.Add(1)
		go func(agentCtx *agent.Context) {
			defer wg.Done()
			intent, ok := l.decideIntent(ctx, agentCtx, state.CurrentRound)
			if !ok {
				return
			}
			if _, err := l.cfg.Controller.SubmitIntent(ctx, intent); err != nil {
				logging.Error().Err(err).Str("agentID", intent.AgentID).Msg("auto intent submit failed")
			}
		}(agentCtx)
	}
	wg.Wait()
}

// decideIntent asks a single agent whether it wants to speak this round,
// via a short non-streaming completion. Responses are expected in the
// form "SPEAK: <urgency 1-5>: <reason>" or "PASS".
func (l *Loop) decideIntent(ctx context.Context, agentCtx *agent.Context, round int) (types.Intent, bool) {
	spec := agentCtx.Spec()
	client, err := l.clientFor(spec)
	if err != nil {
		return types.Intent{}, false
	}

	messages := append(agentCtx.BuildMessages(), &decisionPrompt)
	msg, err := client.Chat(ctx, modelclient.Request{Messages: messages, MaxTokens: 32, Temperature: spec.Temperature})
	if err != nil {
		return types.Intent{}, false
	}

	reply := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(strings.ToUpper(reply), "SPEAK") {
		return types.Intent{}, false
	}

	urgency := 1
	parts := strings.SplitN(reply, ":", 3)
	if len(parts) >= 2 {
		if n, err := parseUrgency(parts[1]); err == nil {
			urgency = n
		}
	}
	reason := ""
	if len(parts) == 3 {
		reason = strings.TrimSpace(parts[2])
	}

	return types.Intent{
		SessionID:    l.cfg.SessionID,
		AgentID:      spec.Name,
		Content:      reason,
		UrgencyLevel: urgency,
		Urgency:      float64(urgency),
	}, true
}

func (l *Loop) clientFor(spec types.AgentSpec) (modelclient.ModelClient, error) {
	providerID := spec.ProviderID
	if providerID == "" {
		providerID = "anthropic"
	}
	return l.cfg.Models.Get(providerID)
}

func (l *Loop) publishTransient(ctx context.Context, eventType types.EventType, agentID string, payload map[string]any) {
	if _, err := l.cfg.Log.Append(ctx, eventType, agentID, payload, true); err != nil {
		logging.Error().Err(err).Str("sessionID", l.cfg.SessionID).Msg("transient publish failed")
	}
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// decisionPrompt is appended to an agent's normal context when asking it
// whether it wants to speak this round.
var decisionPrompt = schema.Message{
	Role:    schema.User,
	Content: "Do you want to speak next? Reply exactly \"PASS\" or \"SPEAK: <urgency 1-5>: <one-line reason>\".",
}

// parseUrgency parses a 1-5 urgency level out of a decision reply,
// clamping out-of-range values instead of rejecting them.
func parseUrgency(s string) (int, error) {
	s = strings.TrimSpace(s)
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n < 1 {
		n = 1
	}
	if n > 5 {
		n = 5
	}
	return n, nil
}

// sleepCtx sleeps for d or returns false early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
