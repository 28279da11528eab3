package tui

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
)

// Run connects to addr for sessionID and blocks until the user quits.
func Run(addr, sessionID string) error {
	client := NewClient(addr, sessionID)

	ctx := context.Background()
	frames, err := client.Stream(ctx)
	if err != nil {
		return fmt.Errorf("connect to session %s: %w", sessionID, err)
	}

	model := New(client, frames, sessionID)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
