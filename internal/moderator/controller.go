// Package moderator implements the deterministic state machine that owns
// one session's lifecycle: phase transitions, turn granting, intervention
// level and the intent queue that feeds the rule engine.
package moderator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/intent"
	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/internal/rules"
	"github.com/roundtable/engine/pkg/types"
)

// DefaultColdThreshold is the number of idle scheduler ticks
// (IdleRounds) that must elapse before the moderator considers the
// session cold, when a scenario does not set MaxIdleRounds.
const DefaultColdThreshold = 2

// overheatedShare and overheatedMinCount define isOverheated: the
// leading speaker must hold more than overheatedShare of all SPEECH
// events, and must have spoken more than overheatedMinCount times, to
// avoid flagging a two-speech head start in a short session.
const (
	overheatedShare    = 0.6
	overheatedMinCount = 2
)

// Controller is the single owner of one session's SessionState. Every
// mutation goes through its methods under lock. Lifecycle changes,
// intents, turn grants, round advances and intervention changes are
// recorded to the event log; speech bookkeeping (SpeakCounts,
// ConsecutiveSpeaks, IdleRounds) is updated in memory only.
type Controller struct {
	mu    sync.RWMutex
	state types.SessionState

	queue *intent.Queue
	rules *rules.Engine
	log   *eventlog.Log

	phases                []types.ScenarioPhase
	defaultAllowInterrupt bool
	coldThreshold         int

	// moderatorOverride marks the current grant as an explicit
	// moderator nomination (CallAgent), exempt from the consecutive
	// cap.
	moderatorOverride bool
}

// Config seeds a new Controller's SessionState.
type Config struct {
	SessionID      string
	Topic          string
	Participants   []string
	SpeakingOrder  types.SpeakingOrder
	MaxRounds      int
	TurnTimeoutSec int
	Intervention   types.InterventionLevel

	// Phases, AllowInterrupt and MaxIdleRounds mirror the scenario
	// fields of the same name; see types.Scenario.
	Phases         []types.ScenarioPhase
	AllowInterrupt bool
	MaxIdleRounds  int
}

// New creates a Controller in PhasePending.
func New(cfg Config, log *eventlog.Log) *Controller {
	coldThreshold := cfg.MaxIdleRounds
	if coldThreshold <= 0 {
		coldThreshold = DefaultColdThreshold
	}
	var phaseID string
	if len(cfg.Phases) > 0 {
		phaseID = cfg.Phases[0].ID
	}
	switch cfg.SpeakingOrder {
	case types.SpeakingOrderRoundRobin, types.SpeakingOrderFree, types.SpeakingOrderModerated, types.SpeakingOrderPriority:
	case "":
		cfg.SpeakingOrder = types.SpeakingOrderRoundRobin
	default:
		logging.Warn().Str("sessionID", cfg.SessionID).Str("speakingOrder", string(cfg.SpeakingOrder)).Msg("unknown speaking order, falling back to free")
		cfg.SpeakingOrder = types.SpeakingOrderFree
	}
	return &Controller{
		state: types.SessionState{
			SessionID:         cfg.SessionID,
			Topic:             cfg.Topic,
			Phase:             types.PhasePending,
			Participants:      append([]string(nil), cfg.Participants...),
			SpeakingOrder:     cfg.SpeakingOrder,
			MaxRounds:         cfg.MaxRounds,
			TurnTimeoutSec:    cfg.TurnTimeoutSec,
			InterventionLevel: cfg.Intervention,
			CreatedAt:         time.Now().UnixMilli(),
			PhaseID:           phaseID,
		},
		queue:                 intent.New(),
		rules:                 rules.New(),
		log:                   log,
		phases:                cfg.Phases,
		defaultAllowInterrupt: cfg.AllowInterrupt,
		coldThreshold:         coldThreshold,
	}
}

// State returns a snapshot of the current SessionState, safe to read
// without holding the Controller's lock.
func (c *Controller) State() *types.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Queue exposes the pending-intent queue so the discussion loop and
// server command handlers can submit/list/withdraw without routing every
// call through the controller.
func (c *Controller) Queue() *intent.Queue {
	return c.queue
}

func (c *Controller) record(ctx context.Context, eventType types.EventType, agentID string, payload map[string]any) {
	if c.log == nil {
		return
	}
	if _, err := c.log.Append(ctx, eventType, agentID, payload, false); err != nil {
		// The log itself already reports persistence failures to the
		// caller that owns it; a logging-path error here must not be
		// allowed to corrupt the in-memory state transition that already
		// happened.
		_ = err
	}
}

// Start transitions a pending session into active. Returns
// coreerrors.ErrCapability if the session is not pending.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != types.PhasePending {
		c.mu.Unlock()
		return fmt.Errorf("start session: %w", coreerrors.ErrCapability)
	}
	c.state.Phase = types.PhaseActive
	c.state.StartedAt = time.Now().UnixMilli()
	c.state.CurrentRound = 1
	c.mu.Unlock()

	c.record(ctx, types.EventSessionStarted, "", nil)
	return nil
}

// Pause transitions an active session into paused.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != types.PhaseActive {
		c.mu.Unlock()
		return fmt.Errorf("pause session: %w", coreerrors.ErrCapability)
	}
	c.state.Phase = types.PhasePaused
	c.mu.Unlock()

	c.record(ctx, types.EventSessionPaused, "", nil)
	return nil
}

// Resume transitions a paused session back to active.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != types.PhasePaused {
		c.mu.Unlock()
		return fmt.Errorf("resume session: %w", coreerrors.ErrCapability)
	}
	c.state.Phase = types.PhaseActive
	c.mu.Unlock()

	c.record(ctx, types.EventSessionResumed, "", nil)
	return nil
}

// End transitions the session into completed. Valid from active or
// paused.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != types.PhaseActive && c.state.Phase != types.PhasePaused {
		c.mu.Unlock()
		return fmt.Errorf("end session: %w", coreerrors.ErrCapability)
	}
	c.state.Phase = types.PhaseCompleted
	c.state.EndedAt = time.Now().UnixMilli()
	c.mu.Unlock()

	c.record(ctx, types.EventSessionEnded, "", nil)
	return nil
}

// Abort forces the session into aborted from any non-terminal phase,
// recording reason on the event.
func (c *Controller) Abort(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.state.IsTerminal() {
		c.mu.Unlock()
		return fmt.Errorf("abort session: %w", coreerrors.ErrCapability)
	}
	c.state.Phase = types.PhaseAborted
	c.state.EndedAt = time.Now().UnixMilli()
	c.mu.Unlock()

	c.record(ctx, types.EventSessionAborted, "", map[string]any{"reason": reason})
	return nil
}

// SubmitIntent validates the session is active and enqueues i, stamping
// an ID and SubmittedAt if the caller left them empty. An Interrupt
// intent only jumps the queue when the current phase's allowInterrupt
// gate is open; otherwise it is downgraded to ordinary descending-
// urgency placement.
func (c *Controller) SubmitIntent(ctx context.Context, i types.Intent) (types.Intent, error) {
	c.mu.RLock()
	active := c.state.Phase == types.PhaseActive
	allowInterrupt := c.allowInterruptLocked()
	c.mu.RUnlock()
	if !active {
		return types.Intent{}, fmt.Errorf("submit intent: %w", coreerrors.ErrCapability)
	}

	if i.ID == "" {
		i.ID = ulid.Make().String()
	}
	if i.SubmittedAt == 0 {
		i.SubmittedAt = time.Now().UnixMilli()
	}
	if i.Interrupt && !allowInterrupt {
		i.Interrupt = false
	}
	c.queue.Submit(i)

	c.record(ctx, types.EventIntentSubmitted, i.AgentID, map[string]any{
		"intentID":     i.ID,
		"urgencyLevel": i.UrgencyLevel,
		"urgency":      i.Urgency,
		"interrupt":    i.Interrupt,
	})
	return i, nil
}

// allowInterruptLocked reports whether the session's current phase
// permits interrupt intents to jump the queue. Callers must hold at
// least a read lock. A scenario with no Phases falls back to the
// top-level AllowInterrupt default.
func (c *Controller) allowInterruptLocked() bool {
	for _, p := range c.phases {
		if p.ID == c.state.PhaseID {
			return p.AllowInterrupt
		}
	}
	return c.defaultAllowInterrupt
}

// WithdrawIntent removes a pending intent by id.
func (c *Controller) WithdrawIntent(ctx context.Context, intentID, agentID string) error {
	if !c.queue.Withdraw(intentID) {
		return fmt.Errorf("withdraw intent %s: %w", intentID, coreerrors.ErrNotFound)
	}
	c.record(ctx, types.EventIntentWithdrawn, agentID, map[string]any{"intentID": intentID})
	return nil
}

// GrantNextTurn asks the rule engine to select the next speaker under the
// session's configured SpeakingOrder and, if it can, grants the turn.
// Under round-robin, free or priority order, a candidate that is
// LastSpeakerID and has already reached rules.MaxConsecutiveSpeaks is
// rejected and the engine is asked again; moderated order never
// proposes such a candidate in the first place. For
// SpeakingOrderModerated the rule engine selects by lowest SpeakCounts;
// the moderator may also override it via CallAgent.
func (c *Controller) GrantNextTurn(ctx context.Context) (string, bool, error) {
	c.mu.Lock()
	if c.state.Phase != types.PhaseActive {
		c.mu.Unlock()
		return "", false, fmt.Errorf("grant turn: %w", coreerrors.ErrCapability)
	}

	order := c.state.SpeakingOrder
	attempts := len(c.state.Participants) + 1
	if attempts < 1 {
		attempts = 1
	}

	var decision rules.Decision
	granted := false
	for i := 0; i < attempts; i++ {
		d, found := c.rules.SelectNext(&c.state, c.queue)
		if !found {
			break
		}
		capped := order != types.SpeakingOrderModerated &&
			d.AgentID == c.state.LastSpeakerID &&
			c.state.ConsecutiveSpeaks >= rules.MaxConsecutiveSpeaks
		if !capped {
			decision, granted = d, true
			break
		}
		if order == types.SpeakingOrderRoundRobin {
			c.state.SpeakerIndex = (c.state.SpeakerIndex + 1) % max(1, len(c.state.Participants))
			continue
		}
		if d.IntentID != "" {
			c.queue.Withdraw(d.IntentID)
		}
	}
	if !granted {
		c.mu.Unlock()
		return "", false, nil
	}
	c.applyGrant(decision.AgentID, false)
	reason := decision.Reason
	c.mu.Unlock()

	if order == types.SpeakingOrderFree || order == types.SpeakingOrderPriority {
		c.queue.Withdraw(decision.IntentID)
	}

	c.record(ctx, types.EventTurnGranted, decision.AgentID, map[string]any{"reason": reason})
	return decision.AgentID, true, nil
}

// GrantTurnTo explicitly grants the floor to agentID for an
// intent-driven turn (popped from the intent queue). Unlike CallAgent
// this is not a moderator override: the consecutive-speech cap still
// applies when the speech is validated.
func (c *Controller) GrantTurnTo(ctx context.Context, agentID string) error {
	c.mu.Lock()
	if c.state.Phase != types.PhaseActive {
		c.mu.Unlock()
		return fmt.Errorf("grant turn: %w", coreerrors.ErrCapability)
	}
	c.applyGrant(agentID, false)
	c.mu.Unlock()

	c.record(ctx, types.EventTurnGranted, agentID, map[string]any{"reason": "intent"})
	return nil
}

// CallAgent grants the floor to agentID as an explicit moderator
// override (starvation nomination or a direct call), publishing a
// MODERATOR_CALL event. This bypasses the consecutive-speech cap.
func (c *Controller) CallAgent(ctx context.Context, agentID, reason string) error {
	c.mu.Lock()
	if c.state.Phase != types.PhaseActive {
		c.mu.Unlock()
		return fmt.Errorf("call agent: %w", coreerrors.ErrCapability)
	}
	c.applyGrant(agentID, true)
	c.mu.Unlock()

	c.record(ctx, types.EventModeratorCall, agentID, map[string]any{"action": "MODERATOR_CALL", "reason": reason})
	return nil
}

func (c *Controller) applyGrant(agentID string, moderatorOverride bool) {
	c.state.CurrentSpeaker = agentID
	c.state.TurnStartedAt = time.Now().UnixMilli()
	c.moderatorOverride = moderatorOverride
	for i, p := range c.state.Participants {
		if p == agentID {
			c.state.SpeakerIndex = i
			break
		}
	}
}

// ValidateSpeech checks whether agentID currently holds the floor and,
// under non-moderated orders, that it has not exceeded
// rules.MaxConsecutiveSpeaks as the last speaker — the gate every
// inbound speech event passes through before being accepted. A grant
// made through CallAgent is exempt.
func (c *Controller) ValidateSpeech(agentID string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Phase != types.PhaseActive {
		return fmt.Errorf("validate speech: %w", coreerrors.ErrCapability)
	}
	if c.state.CurrentSpeaker != agentID {
		return fmt.Errorf("validate speech: agent %s does not hold the floor: %w", agentID, coreerrors.ErrCapability)
	}
	if !c.moderatorOverride && c.state.SpeakingOrder != types.SpeakingOrderModerated &&
		agentID == c.state.LastSpeakerID && c.state.ConsecutiveSpeaks >= rules.MaxConsecutiveSpeaks {
		return fmt.Errorf("validate speech: %s exceeded consecutive-speech cap: %w", agentID, coreerrors.ErrCapability)
	}
	return nil
}

// CompleteTurn clears the current speaker without recording a speech,
// advancing SpeakerIndex for round-robin order so the next
// GrantNextTurn moves to the following participant. Used both after a
// successful speech (via RecordSpeech) and after a speaker timeout,
// where no SPEECH was produced.
func (c *Controller) CompleteTurn(ctx context.Context) error {
	c.mu.Lock()
	if c.state.SpeakingOrder == types.SpeakingOrderRoundRobin {
		c.state.SpeakerIndex = (c.state.SpeakerIndex + 1) % max(1, len(c.state.Participants))
	}
	c.state.CurrentSpeaker = ""
	c.state.TurnStartedAt = 0
	c.moderatorOverride = false
	c.mu.Unlock()
	return nil
}

// RecordSpeech marks agentID's SPEECH event as complete: bumps
// SpeakCounts, updates LastSpeakerID/ConsecutiveSpeaks, resets
// IdleRounds, and then completes the turn.
func (c *Controller) RecordSpeech(ctx context.Context, agentID string) error {
	c.mu.Lock()
	if c.state.SpeakCounts == nil {
		c.state.SpeakCounts = make(map[string]int)
	}
	c.state.SpeakCounts[agentID]++
	if agentID == c.state.LastSpeakerID {
		c.state.ConsecutiveSpeaks++
	} else {
		c.state.ConsecutiveSpeaks = 1
	}
	c.state.LastSpeakerID = agentID
	c.state.IdleRounds = 0
	c.mu.Unlock()
	return c.CompleteTurn(ctx)
}

// NoteIdle increments IdleRounds after a scheduler tick that granted no
// turn, the signal EvaluateIntervention's isCold check reads.
func (c *Controller) NoteIdle() {
	c.mu.Lock()
	c.state.IdleRounds++
	c.mu.Unlock()
}

// AdvanceRound increments CurrentRound and ends the session automatically
// once MaxRounds (if set) has been reached.
func (c *Controller) AdvanceRound(ctx context.Context) error {
	c.mu.Lock()
	c.state.CurrentRound++
	round := c.state.CurrentRound
	maxRounds := c.state.MaxRounds
	c.mu.Unlock()

	c.record(ctx, types.EventRoundAdvanced, "", map[string]any{"round": round})

	if maxRounds > 0 && round > maxRounds {
		return c.End(ctx)
	}
	return nil
}

// SetIntervention changes the moderator's intervention level (0 silent
// through 3 full control).
func (c *Controller) SetIntervention(ctx context.Context, level types.InterventionLevel) error {
	if level < types.InterventionSilent || level > types.InterventionControl {
		return fmt.Errorf("set intervention: invalid level %d: %w", level, coreerrors.ErrConfiguration)
	}
	c.mu.Lock()
	c.state.InterventionLevel = level
	c.mu.Unlock()

	c.record(ctx, types.EventInterventionChanged, "", map[string]any{"level": int(level)})
	return nil
}

// CheckTimeout reports whether the current turn has exceeded its
// configured timeout.
func (c *Controller) CheckTimeout(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules.CheckTimeout(&c.state, now)
}

// InterventionResult reports what EvaluateIntervention decided, so the
// discussion loop knows whether it already granted a turn this tick.
type InterventionResult struct {
	Nominated bool
	AgentID   string
}

// EvaluateIntervention applies the moderator's proactive-intervention
// decision policy: warn on an overheated speaker, then nominate the
// least-spoken non-last-speaker agent on starvation according to
// InterventionLevel.
//
//   - isCold := IdleRounds >= coldThreshold.
//   - isOverheated := max(SpeakCounts)/sum(SpeakCounts) > 0.6 and max > 2.
//   - overheated and level >= 1: warn (InterventionChanged-flavored event).
//   - cold: nominate if level >= 2, or level == 1 and idle >= 2*coldThreshold.
//   - not cold, no intents pending, level >= 2: proactively nominate anyway.
func (c *Controller) EvaluateIntervention(ctx context.Context) InterventionResult {
	c.mu.RLock()
	level := c.state.InterventionLevel
	idle := c.state.IdleRounds
	cold := c.coldThreshold
	overheatedAgent, overheated := isOverheatedLocked(c.state.SpeakCounts)
	isCold := cold > 0 && idle >= cold
	extended := cold > 0 && idle >= 2*cold
	nominee := leastSpokenExcludingLastLocked(&c.state)
	pending := c.queue.Len()
	c.mu.RUnlock()

	if overheated && level >= types.InterventionNudge {
		c.record(ctx, types.EventInterventionChanged, overheatedAgent, map[string]any{
			"action": "WARN",
			"reason": "overheated",
		})
	}

	nominate := false
	switch {
	case isCold:
		nominate = level >= types.InterventionRedirect || (level == types.InterventionNudge && extended)
	case pending == 0:
		nominate = level >= types.InterventionRedirect
	}
	if !nominate || nominee == "" {
		return InterventionResult{}
	}

	if err := c.CallAgent(ctx, nominee, "starvation"); err != nil {
		return InterventionResult{}
	}
	return InterventionResult{Nominated: true, AgentID: nominee}
}

// isOverheatedLocked reports the agent with the most SPEECH events and
// whether it crosses the overheated thresholds. Callers must hold at
// least a read lock.
func isOverheatedLocked(counts map[string]int) (agentID string, overheated bool) {
	var maxCount, sum int
	for id, n := range counts {
		sum += n
		if n > maxCount {
			maxCount, agentID = n, id
		}
	}
	if sum == 0 {
		return "", false
	}
	return agentID, float64(maxCount)/float64(sum) > overheatedShare && maxCount > overheatedMinCount
}

// leastSpokenExcludingLastLocked returns the participant with the
// fewest SpeakCounts, always excluding LastSpeakerID (a starvation
// nominee must not be the agent that just spoke), unless it is the
// only participant. Callers must hold at least a read lock.
func leastSpokenExcludingLastLocked(state *types.SessionState) string {
	best := ""
	bestCount := -1
	for _, p := range state.Participants {
		if p == state.LastSpeakerID && len(state.Participants) > 1 {
			continue
		}
		count := state.SpeakCounts[p]
		if bestCount == -1 || count < bestCount {
			best, bestCount = p, count
		}
	}
	return best
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
