package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roundtable/engine/internal/config"
	"github.com/roundtable/engine/internal/headless"
	"github.com/roundtable/engine/internal/sharing"
	"github.com/roundtable/engine/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run and inspect discussion sessions from the command line",
}

var (
	sessionRunTimeout time.Duration
	sessionRunFormat  string
	sessionRunQuiet   bool
	sessionRunVerbose bool
)

var sessionRunCmd = &cobra.Command{
	Use:   "run <scenario-path>",
	Short: "Run a scenario headlessly until it completes",
	Long: `Create and start a session from a scenario document, stream its
events to stdout as the discussion plays out, and exit once it reaches a
terminal phase.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionRun,
}

var sessionReplayAfter uint64

var sessionReplayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Print persisted events for a session from the durable store",
	Long: `Print every persisted event for a session, or only the events after
a given sequence number for cursor-based catch-up (--after).`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionReplay,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Render a session's transcript and mint a share token for it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionExport,
}

func init() {
	sessionRunCmd.Flags().DurationVar(&sessionRunTimeout, "timeout", 5*time.Minute, "Maximum time to wait for the session to finish")
	sessionRunCmd.Flags().StringVar(&sessionRunFormat, "format", "text", "Output format: text, json or jsonl")
	sessionRunCmd.Flags().BoolVarP(&sessionRunQuiet, "quiet", "q", false, "Only print each agent's spoken turns")
	sessionRunCmd.Flags().BoolVarP(&sessionRunVerbose, "verbose", "v", false, "Include scheduling and moderator events")
	sessionReplayCmd.Flags().Uint64Var(&sessionReplayAfter, "after", 0, "Only print events with a sequence number greater than this")
	sessionCmd.AddCommand(sessionRunCmd, sessionReplayCmd, sessionExportCmd)
}

func runSessionRun(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	appConfig, err := config.Load(dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	mgr, err := newManager(ctx, appConfig)
	if err != nil {
		return err
	}

	cfg := headless.DefaultConfig()
	cfg.ScenarioPath = args[0]
	cfg.Timeout = sessionRunTimeout
	cfg.OutputFormat = headless.OutputFormat(sessionRunFormat)
	cfg.Quiet = sessionRunQuiet
	cfg.Verbose = sessionRunVerbose

	runner := headless.NewRunner(cfg, mgr)
	result, err := runner.Run(ctx, os.Stdout)
	if err != nil {
		return fmt.Errorf("run scenario: %w", err)
	}
	if result.ExitCode != headless.ExitSuccess {
		return fmt.Errorf("session %s ended with status %s", result.SessionID, result.Status)
	}
	return nil
}

func runSessionReplay(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.LoadAll(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no persisted events for session %q", args[0])
	}
	for _, e := range events {
		if e.Sequence <= sessionReplayAfter {
			continue
		}
		printEvent(e)
	}
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.LoadAll(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no persisted events for session %q", args[0])
	}

	transcript := sharing.RenderTranscript(args[0], events)

	manager := sharing.NewManager("")
	info, err := manager.Export(args[0], nil)
	if err != nil {
		return fmt.Errorf("mint export token: %w", err)
	}

	fmt.Print(transcript)
	fmt.Printf("\nexported as %s\n", info.URL)
	return nil
}

func printEvent(e types.Event) {
	switch e.Type {
	case types.EventSpeechComplete:
		fmt.Printf("[%d] %s: %v\n", e.Sequence, e.AgentID, e.Payload["content"])
	default:
		fmt.Printf("[%d] %s agent=%s\n", e.Sequence, e.Type, e.AgentID)
	}
}
