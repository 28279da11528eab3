package types

// Intent is an agent's request to speak, held in a session's IntentQueue
// until the rule engine grants it a turn.
type Intent struct {
	ID            string  `json:"id"`
	SessionID     string  `json:"sessionID"`
	AgentID       string  `json:"agentID"`
	Content       string  `json:"content,omitempty"`
	UrgencyLevel  int     `json:"urgencyLevel"` // 0 normal, higher preempts
	Urgency       float64 `json:"urgency"`      // tiebreaker within a level
	Interrupt     bool    `json:"interrupt"`    // jump to head, pre-empting the current speaker
	SubmittedAt   int64   `json:"submittedAt"`
}

// Less orders intents for the queue: higher UrgencyLevel first, then
// higher Urgency, then earlier SubmittedAt (FIFO within a tier).
func (i Intent) Less(other Intent) bool {
	if i.UrgencyLevel != other.UrgencyLevel {
		return i.UrgencyLevel > other.UrgencyLevel
	}
	if i.Urgency != other.Urgency {
		return i.Urgency > other.Urgency
	}
	return i.SubmittedAt < other.SubmittedAt
}
