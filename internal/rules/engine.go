// Package rules implements the turn-taking discipline a session enforces:
// given the current SessionState and pending intents, who speaks next and
// when has the current speaker run out of time.
package rules

import (
	"time"

	"github.com/roundtable/engine/internal/intent"
	"github.com/roundtable/engine/pkg/types"
)

// MaxConsecutiveSpeaks caps how many successive SPEECH events a single
// agent may produce under round-robin, free or priority order before the
// moderator must pass the floor elsewhere.
const MaxConsecutiveSpeaks = 2

// Decision is the rule engine's answer to "who speaks next", including why
// so callers can record it on the turn.granted event. IntentID is set
// when the decision came from an intent.Queue entry, so the caller can
// remove that specific entry rather than blindly popping the head.
type Decision struct {
	AgentID  string
	IntentID string
	Reason   string
}

// Engine selects speakers according to a session's SpeakingOrder. It is
// stateless: all state it reasons about lives in the SessionState and
// Queue passed to each call.
type Engine struct{}

// New creates an Engine.
func New() *Engine {
	return &Engine{}
}

// SelectNext decides who should speak next. ok is false when no one is
// eligible (e.g. an empty intent queue under a free or priority order).
func (e *Engine) SelectNext(state *types.SessionState, q *intent.Queue) (Decision, bool) {
	switch state.SpeakingOrder {
	case types.SpeakingOrderRoundRobin:
		return e.selectRoundRobin(state)
	case types.SpeakingOrderFree:
		return e.selectFromQueue(q, state.SpeakingOrder)
	case types.SpeakingOrderPriority:
		return e.selectPriority(state, q)
	case types.SpeakingOrderModerated:
		return e.selectModerated(state)
	default:
		return e.selectRoundRobin(state)
	}
}

func (e *Engine) selectRoundRobin(state *types.SessionState) (Decision, bool) {
	if len(state.Participants) == 0 {
		return Decision{}, false
	}
	idx := state.SpeakerIndex % len(state.Participants)
	return Decision{AgentID: state.Participants[idx], Reason: "round_robin"}, true
}

func (e *Engine) selectFromQueue(q *intent.Queue, order types.SpeakingOrder) (Decision, bool) {
	i, ok := q.Peek()
	if !ok {
		return Decision{}, false
	}
	return Decision{AgentID: i.AgentID, IntentID: i.ID, Reason: string(order)}, true
}

// selectPriority picks the queued agent with the lowest SpeakCounts,
// ties broken by earliest submission (a proxy for longest idle, since
// SessionState tracks no per-agent last-spoken timestamp). Unlike free,
// this does not necessarily return the queue head.
func (e *Engine) selectPriority(state *types.SessionState, q *intent.Queue) (Decision, bool) {
	items := q.List()
	if len(items) == 0 {
		return Decision{}, false
	}
	best := items[0]
	bestCount := state.SpeakCounts[best.AgentID]
	for _, it := range items[1:] {
		count := state.SpeakCounts[it.AgentID]
		if count < bestCount || (count == bestCount && it.SubmittedAt < best.SubmittedAt) {
			best, bestCount = it, count
		}
	}
	return Decision{AgentID: best.AgentID, IntentID: best.ID, Reason: string(types.SpeakingOrderPriority)}, true
}

// selectModerated picks the agent with the lowest SpeakCounts, excluding
// LastSpeakerID if it has already reached MaxConsecutiveSpeaks.
func (e *Engine) selectModerated(state *types.SessionState) (Decision, bool) {
	agentID := leastSpoken(state, true)
	if agentID == "" {
		return Decision{}, false
	}
	return Decision{AgentID: agentID, Reason: string(types.SpeakingOrderModerated)}, true
}

// leastSpoken returns the participant with the smallest SpeakCounts
// entry, in participant order for ties. When excludeCappedLast is true,
// LastSpeakerID is skipped once it has reached MaxConsecutiveSpeaks,
// unless it is the only participant.
func leastSpoken(state *types.SessionState, excludeCappedLast bool) string {
	best := ""
	bestCount := -1
	for _, p := range state.Participants {
		if excludeCappedLast && len(state.Participants) > 1 &&
			p == state.LastSpeakerID && state.ConsecutiveSpeaks >= MaxConsecutiveSpeaks {
			continue
		}
		count := state.SpeakCounts[p]
		if bestCount == -1 || count < bestCount {
			best, bestCount = p, count
		}
	}
	return best
}

// CheckTimeout reports whether the current turn has exceeded its
// configured timeout as of now. A zero TurnTimeoutSec or TurnStartedAt
// means the turn never times out.
func (e *Engine) CheckTimeout(state *types.SessionState, now time.Time) bool {
	if state.TurnTimeoutSec <= 0 || state.TurnStartedAt == 0 {
		return false
	}
	deadline := time.UnixMilli(state.TurnStartedAt).Add(time.Duration(state.TurnTimeoutSec) * time.Second)
	return now.After(deadline)
}

// RemainingTime returns how long the current turn has left before it
// times out. A non-positive TurnTimeoutSec means no limit, reported as
// -1.
func (e *Engine) RemainingTime(state *types.SessionState, now time.Time) time.Duration {
	if state.TurnTimeoutSec <= 0 || state.TurnStartedAt == 0 {
		return -1
	}
	deadline := time.UnixMilli(state.TurnStartedAt).Add(time.Duration(state.TurnTimeoutSec) * time.Second)
	remaining := deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
