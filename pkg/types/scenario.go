package types

// AgentSpec describes one participant of a scenario: its persona, the
// model backend it speaks through and the private-memory limits its
// AgentContext enforces.
type AgentSpec struct {
	Name             string   `json:"name" yaml:"name"`
	Role             string   `json:"role,omitempty" yaml:"role,omitempty"`
	SystemPrompt     string   `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	ProviderID       string   `json:"providerID" yaml:"providerID"`
	ModelID          string   `json:"modelID" yaml:"modelID"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty" yaml:"topP,omitempty"`
	MaxContextEvents int      `json:"maxContextEvents,omitempty" yaml:"maxContextEvents,omitempty"`
	AutoParticipate  bool     `json:"autoParticipate,omitempty" yaml:"autoParticipate,omitempty"`
}

// ModeratorSpec configures the moderator for a scenario.
type ModeratorSpec struct {
	InterventionLevel InterventionLevel `json:"interventionLevel" yaml:"interventionLevel"`
	TurnTimeoutSec    int               `json:"turnTimeoutSec,omitempty" yaml:"turnTimeoutSec,omitempty"`
}

// ScenarioPhase is one stage of a multi-phase scenario. A session
// without phases runs entirely under the scenario's top-level
// SpeakingOrder/AllowInterrupt as an implicit single phase.
type ScenarioPhase struct {
	ID             string        `json:"id" yaml:"id"`
	SpeakingOrder  SpeakingOrder `json:"speakingOrder,omitempty" yaml:"speakingOrder,omitempty"`
	AllowInterrupt bool          `json:"allowInterrupt,omitempty" yaml:"allowInterrupt,omitempty"`
	MaxRounds      int           `json:"maxRounds,omitempty" yaml:"maxRounds,omitempty"`
}

// Scenario is the declarative definition of a discussion: who
// participates, how turns are allocated and when the session should
// terminate. Scenarios are loaded from YAML files and validated against
// a JSON schema before use.
type Scenario struct {
	ID             string        `json:"id" yaml:"id"`
	Topic          string        `json:"topic" yaml:"topic"`
	Description    string        `json:"description,omitempty" yaml:"description,omitempty"`
	SpeakingOrder  SpeakingOrder `json:"speakingOrder" yaml:"speakingOrder"`
	MaxRounds      int           `json:"maxRounds,omitempty" yaml:"maxRounds,omitempty"`
	TurnTimeoutSec int           `json:"turnTimeoutSec,omitempty" yaml:"turnTimeoutSec,omitempty"`
	Participants   []AgentSpec   `json:"participants" yaml:"participants"`
	Moderator      ModeratorSpec `json:"moderator,omitempty" yaml:"moderator,omitempty"`
	Schedule       string        `json:"schedule,omitempty" yaml:"schedule,omitempty"` // cron expression, validated on load; nothing starts a session from it
	Outline        bool          `json:"outline,omitempty" yaml:"outline,omitempty"`
	Judge          bool          `json:"judge,omitempty" yaml:"judge,omitempty"`
	Summary        bool          `json:"summary,omitempty" yaml:"summary,omitempty"`

	// AllowInterrupt gates whether submitted interrupt intents jump the
	// intent queue, for scenarios with no Phases. Phases override this
	// per phase.
	AllowInterrupt bool `json:"allowInterrupt,omitempty" yaml:"allowInterrupt,omitempty"`
	// Phases optionally names the discussion's stages; empty means a
	// single implicit phase governed by the top-level fields. A session
	// starts in the first phase, whose AllowInterrupt gates interrupt
	// intents. A phase's SpeakingOrder and MaxRounds are not applied, and
	// the session never moves on to a later phase.
	Phases []ScenarioPhase `json:"phases,omitempty" yaml:"phases,omitempty"`
	// MaxIdleRounds is the coldThreshold the moderator's proactive
	// intervention policy compares IdleRounds against.
	MaxIdleRounds int `json:"maxIdleRounds,omitempty" yaml:"maxIdleRounds,omitempty"`
}
