// Package sharing renders a finished session's event log into a flat
// transcript and mints a short-lived export token for handing it off.
package sharing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roundtable/engine/pkg/types"
)

// ExportInfo records one transcript export.
type ExportInfo struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionID"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// ExportOptions configures how long an export token remains valid.
type ExportOptions struct {
	ExpiresIn time.Duration
}

// Manager mints and tracks transcript export tokens. It holds no
// transcript content itself; RenderTranscript is a pure function callers
// use to produce the text an export token points at.
type Manager struct {
	mu        sync.RWMutex
	exports   map[string]*ExportInfo // token -> export info
	bySession map[string]string      // sessionID -> token
	baseURL   string
}

// NewManager creates a Manager minting export URLs under baseURL.
func NewManager(baseURL string) *Manager {
	if baseURL == "" {
		baseURL = "https://roundtable.example/transcripts"
	}
	return &Manager{
		exports:   make(map[string]*ExportInfo),
		bySession: make(map[string]string),
		baseURL:   baseURL,
	}
}

// Export mints (or refreshes) an export token for sessionID.
func (m *Manager) Export(sessionID string, opts *ExportOptions) (*ExportInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token, exists := m.bySession[sessionID]; exists {
		if info, ok := m.exports[token]; ok {
			if opts != nil && opts.ExpiresIn != 0 {
				info.ExpiresAt = time.Now().Add(opts.ExpiresIn)
			}
			return info, nil
		}
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate export token: %w", err)
	}

	info := &ExportInfo{
		Token:     token,
		SessionID: sessionID,
		URL:       fmt.Sprintf("%s/%s", m.baseURL, token),
		CreatedAt: time.Now(),
	}
	if opts != nil && opts.ExpiresIn != 0 {
		info.ExpiresAt = time.Now().Add(opts.ExpiresIn)
	}

	m.exports[token] = info
	m.bySession[sessionID] = token
	return info, nil
}

// Revoke removes sessionID's export token.
func (m *Manager) Revoke(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, exists := m.bySession[sessionID]
	if !exists {
		return fmt.Errorf("session not exported")
	}
	delete(m.exports, token)
	delete(m.bySession, sessionID)
	return nil
}

// GetByToken retrieves export info by token, rejecting expired tokens.
func (m *Manager) GetByToken(token string) (*ExportInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.exports[token]
	if !ok {
		return nil, fmt.Errorf("export not found")
	}
	if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
		return nil, fmt.Errorf("export expired")
	}
	return info, nil
}

// CleanExpired removes expired export tokens and returns how many were
// removed.
func (m *Manager) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	count := 0
	for token, info := range m.exports {
		if !info.ExpiresAt.IsZero() && now.After(info.ExpiresAt) {
			delete(m.exports, token)
			delete(m.bySession, info.SessionID)
			count++
		}
	}
	return count
}

// generateToken generates a URL-safe random export token.
func generateToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw)[:22], nil
}

// RenderTranscript renders a session's persisted events as a flat,
// human-readable transcript: one line per spoken turn, with round
// markers and a terminal-phase footer.
func RenderTranscript(sessionID string, events []types.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s\n", sessionID)

	round := 0
	for _, e := range events {
		switch e.Type {
		case types.EventRoundAdvanced:
			round++
			fmt.Fprintf(&b, "\n-- round %d --\n", round)
		case types.EventSpeechComplete:
			content, _ := e.Payload["content"].(string)
			fmt.Fprintf(&b, "%s: %s\n", e.AgentID, content)
		case types.EventSessionEnded:
			fmt.Fprintln(&b, "\n-- session completed --")
		case types.EventSessionAborted:
			reason, _ := e.Payload["reason"].(string)
			fmt.Fprintf(&b, "\n-- session aborted: %s --\n", reason)
		}
	}
	return b.String()
}
