package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roundtable/engine/cmd/discussiond/tui"
)

var tuiAddr string

var tuiCmd = &cobra.Command{
	Use:   "tui <session-id>",
	Short: "Watch and steer a session from the terminal",
	Long: `Connect to a running discussiond server and render one session's
live discussion, letting you speak, pause/resume/end it and adjust
moderator intervention from the keyboard.`,
	Args: cobra.ExactArgs(1),
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&tuiAddr, "server", "s", "http://127.0.0.1:8080", "discussiond server address")
}

func runTUI(cmd *cobra.Command, args []string) error {
	if err := tui.Run(tuiAddr, args[0]); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
