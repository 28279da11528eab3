// Package scenario loads and validates discussion scenario documents: the
// declarative YAML description of who participates in a session, how
// turns are allocated and when it should terminate. A Scenario is
// produced here as a validated, read-only configuration object; the
// core discussion engine never parses YAML or JSON Schema itself, it
// only consumes the result.
package scenario

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/roundtable/engine/pkg/types"
)

// defaultMaxContextEvents mirrors agent.DefaultMaxContextEvents so a
// scenario author doesn't have to restate it per participant.
const defaultMaxContextEvents = 50

// LoadFile reads a scenario document from path (YAML or JSON — both
// parse through the same YAML-superset decoder) and returns a validated
// Scenario. ${ENV_VAR} references in string values are expanded before
// parsing.
func LoadFile(path string) (*types.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a scenario document from raw bytes.
func LoadBytes(data []byte) (*types.Scenario, error) {
	expanded := os.ExpandEnv(string(data))

	var raw any
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("scenario: parse document: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var sc types.Scenario
	if err := yaml.Unmarshal([]byte(expanded), &sc); err != nil {
		return nil, fmt.Errorf("scenario: decode document: %w", err)
	}
	applyDefaults(&sc)

	if err := checkSemantics(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// applyDefaults fills in values the schema allows to be omitted.
func applyDefaults(sc *types.Scenario) {
	if sc.SpeakingOrder == "" {
		sc.SpeakingOrder = types.SpeakingOrderRoundRobin
	}
	for i := range sc.Participants {
		p := &sc.Participants[i]
		if p.ProviderID == "" {
			p.ProviderID = "anthropic"
		}
		if p.MaxContextEvents == 0 {
			p.MaxContextEvents = defaultMaxContextEvents
		}
	}
}

// checkSemantics catches constraints the JSON Schema can't express,
// such as cross-field relationships and participant-name uniqueness.
func checkSemantics(sc *types.Scenario) error {
	seen := make(map[string]bool, len(sc.Participants))
	for _, p := range sc.Participants {
		if seen[p.Name] {
			return fmt.Errorf("scenario: duplicate participant name %q", p.Name)
		}
		seen[p.Name] = true
	}

	if sc.SpeakingOrder == types.SpeakingOrderModerated && sc.Moderator.InterventionLevel == types.InterventionSilent {
		return fmt.Errorf("scenario: speakingOrder %q requires moderator.interventionLevel > 0", sc.SpeakingOrder)
	}

	if sc.Schedule != "" {
		if !IsValidCron(sc.Schedule) {
			return fmt.Errorf("scenario: invalid cron expression %q", sc.Schedule)
		}
	}

	return nil
}
