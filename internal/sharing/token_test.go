package sharing

import (
	"strings"
	"testing"
	"time"

	"github.com/roundtable/engine/pkg/types"
)

func TestNewManagerDefaultURL(t *testing.T) {
	manager := NewManager("")
	if manager.baseURL == "" {
		t.Fatal("expected a default base URL")
	}
}

func TestExportMintsToken(t *testing.T) {
	manager := NewManager("https://example.test/t")

	info, err := manager.Export("sess_1", nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if info.Token == "" {
		t.Fatal("expected a non-empty token")
	}
	if info.SessionID != "sess_1" {
		t.Errorf("SessionID = %q, want sess_1", info.SessionID)
	}
	if info.URL != "https://example.test/t/"+info.Token {
		t.Errorf("URL = %q", info.URL)
	}
}

func TestExportIsIdempotentPerSession(t *testing.T) {
	manager := NewManager("")

	first, err := manager.Export("sess_1", nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	second, err := manager.Export("sess_1", nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if first.Token != second.Token {
		t.Error("expected re-exporting the same session to reuse its token")
	}
}

func TestGetByTokenRejectsExpired(t *testing.T) {
	manager := NewManager("")

	info, err := manager.Export("sess_1", &ExportOptions{ExpiresIn: -time.Second})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if _, err := manager.GetByToken(info.Token); err == nil {
		t.Fatal("expected an expired export to be rejected")
	}
}

func TestRevoke(t *testing.T) {
	manager := NewManager("")

	info, err := manager.Export("sess_1", nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := manager.Revoke("sess_1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := manager.GetByToken(info.Token); err == nil {
		t.Fatal("expected token to be gone after Revoke")
	}
	if err := manager.Revoke("sess_1"); err == nil {
		t.Fatal("expected revoking a second time to fail")
	}
}

func TestCleanExpired(t *testing.T) {
	manager := NewManager("")

	if _, err := manager.Export("sess_1", &ExportOptions{ExpiresIn: -time.Second}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := manager.Export("sess_2", nil); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if n := manager.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
}

func TestRenderTranscript(t *testing.T) {
	events := []types.Event{
		{Type: types.EventRoundAdvanced},
		{Type: types.EventSpeechComplete, AgentID: "alice", Payload: map[string]any{"content": "hello"}},
		{Type: types.EventSessionEnded},
	}

	out := RenderTranscript("sess_1", events)
	if !strings.Contains(out, "session sess_1") || !strings.Contains(out, "alice: hello") || !strings.Contains(out, "session completed") {
		t.Errorf("unexpected transcript:\n%s", out)
	}
}
