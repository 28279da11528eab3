package scenario_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roundtable/engine/internal/scenario"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	f := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(f, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestLoadFile_Minimal(t *testing.T) {
	f := writeScenario(t, `
id: sess-1
topic: "Should we rewrite the billing service in Go?"
speakingOrder: round_robin
participants:
  - name: alice
    providerID: anthropic
    modelID: claude-sonnet-4-20250514
  - name: bob
    providerID: openai
    modelID: gpt-4o
`)
	sc, err := scenario.LoadFile(f)
	if err != nil {
		t.Fatal(err)
	}
	if sc.ID != "sess-1" {
		t.Errorf("id = %q", sc.ID)
	}
	if len(sc.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(sc.Participants))
	}
	if sc.Participants[0].MaxContextEvents == 0 {
		t.Error("expected default MaxContextEvents to be applied")
	}
}

func TestLoadFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SCENARIO_TOPIC", "env-expanded topic")
	f := writeScenario(t, `
id: sess-2
topic: "${TEST_SCENARIO_TOPIC}"
speakingOrder: free
participants:
  - name: alice
    providerID: anthropic
    modelID: claude-sonnet-4-20250514
`)
	sc, err := scenario.LoadFile(f)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Topic != "env-expanded topic" {
		t.Errorf("topic = %q", sc.Topic)
	}
}

func TestLoadFile_MissingRequiredFields(t *testing.T) {
	f := writeScenario(t, `id: sess-3`)
	if _, err := scenario.LoadFile(f); err == nil {
		t.Error("expected schema validation error for missing fields")
	}
}

func TestLoadFile_UnknownSpeakingOrder(t *testing.T) {
	f := writeScenario(t, `
id: sess-4
topic: "topic"
speakingOrder: chaotic
participants:
  - name: alice
    providerID: anthropic
    modelID: claude-sonnet-4-20250514
`)
	if _, err := scenario.LoadFile(f); err == nil {
		t.Error("expected schema validation error for unknown speakingOrder")
	}
}

func TestLoadFile_DuplicateParticipantNames(t *testing.T) {
	f := writeScenario(t, `
id: sess-5
topic: "topic"
speakingOrder: round_robin
participants:
  - name: alice
    providerID: anthropic
    modelID: claude-sonnet-4-20250514
  - name: alice
    providerID: openai
    modelID: gpt-4o
`)
	if _, err := scenario.LoadFile(f); err == nil {
		t.Error("expected duplicate-name error")
	}
}

func TestLoadFile_ModeratedRequiresInterventionLevel(t *testing.T) {
	f := writeScenario(t, `
id: sess-6
topic: "topic"
speakingOrder: moderated
participants:
  - name: alice
    providerID: anthropic
    modelID: claude-sonnet-4-20250514
`)
	if _, err := scenario.LoadFile(f); err == nil {
		t.Error("expected moderated-without-intervention error")
	}
}

func TestLoadFile_InvalidCronSchedule(t *testing.T) {
	f := writeScenario(t, `
id: sess-7
topic: "topic"
speakingOrder: round_robin
schedule: "not a cron expression"
participants:
  - name: alice
    providerID: anthropic
    modelID: claude-sonnet-4-20250514
`)
	if _, err := scenario.LoadFile(f); err == nil {
		t.Error("expected invalid cron expression error")
	}
}

func TestLoadFile_FileNotFound(t *testing.T) {
	if _, err := scenario.LoadFile("/definitely/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile_ValidCronSchedule(t *testing.T) {
	f := writeScenario(t, `
id: sess-8
topic: "topic"
speakingOrder: round_robin
schedule: "0 9 * * 1"
participants:
  - name: alice
    providerID: anthropic
    modelID: claude-sonnet-4-20250514
`)
	sc, err := scenario.LoadFile(f)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Schedule != "0 9 * * 1" {
		t.Errorf("schedule = %q", sc.Schedule)
	}
}
