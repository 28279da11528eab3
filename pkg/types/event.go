// Package types provides the core data types shared across the discussion
// coordination engine: events, session state, intents and scenarios.
package types

// EventType identifies the kind of domain event recorded in a session's
// event log.
type EventType string

const (
	EventSessionCreated       EventType = "session.created"
	EventSessionStarted       EventType = "session.started"
	EventSessionPaused        EventType = "session.paused"
	EventSessionResumed       EventType = "session.resumed"
	EventSessionEnded         EventType = "session.ended"
	EventSessionAborted       EventType = "session.aborted"
	EventRoundAdvanced        EventType = "round.advanced"
	EventIntentSubmitted      EventType = "intent.submitted"
	EventIntentWithdrawn      EventType = "intent.withdrawn"
	EventTurnGranted          EventType = "turn.granted"
	EventTurnDenied           EventType = "turn.denied"
	EventSpeechStart          EventType = "speech.start"
	EventSpeechChunk          EventType = "speech.chunk"
	EventSpeechComplete       EventType = "speech.complete"
	EventSpeechFailed         EventType = "speech.failed"
	EventInterventionChanged  EventType = "intervention.changed"
	EventModeratorPrompt      EventType = "moderator.prompt"
	EventModeratorResponse    EventType = "moderator.response"
	EventModeratorCall        EventType = "moderator.call"
	EventSpeakerTimeout       EventType = "speaker.timeout"
	EventOutlineGenerated     EventType = "outline.generated"
	EventJudgeScored          EventType = "judge.scored"
	EventSummaryGenerated     EventType = "summary.generated"
	EventTitleGenerated       EventType = "title.generated"
	EventSummary              EventType = "log.summary"
	EventError                EventType = "error"
)

// Event is a single immutable entry in a session's append-only log.
//
// Sequence is assigned by the EventLog at append time and is strictly
// increasing per session; it is the authoritative ordering key, not
// Timestamp (clock skew or buffering can make timestamps non-monotonic).
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	Sequence  uint64         `json:"sequence"`
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp"` // unix millis
	AgentID   string         `json:"agentID,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`

	// Transient marks events that are not retained in the durable log
	// (streaming speech chunks) — they are fanned out over the bus but
	// never counted toward Sequence or survive a prune.
	Transient bool `json:"transient,omitempty"`
}

// EventFilter narrows a read or subscription to a subset of a session's
// event log.
type EventFilter struct {
	SessionID     string
	Types         []EventType
	AfterSequence uint64
	AgentID       string
	Limit         int
}

// Matches reports whether the event satisfies the filter.
func (f EventFilter) Matches(e Event) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if e.Sequence <= f.AfterSequence {
		return false
	}
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PruneStrategy names the trimming policy applied when a session's event
// log exceeds its configured retention limit.
type PruneStrategy string

const (
	PruneByCount          PruneStrategy = "byCount"
	PruneByType           PruneStrategy = "byType"
	PruneBeforeSequence   PruneStrategy = "beforeSequence"
)
