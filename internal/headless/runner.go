package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/roundtable/engine/internal/scenario"
	"github.com/roundtable/engine/internal/sessionmgr"
	"github.com/roundtable/engine/pkg/types"
)

// pollInterval bounds how often Run checks whether a session has reached a
// terminal phase, in between events arriving on the bus.
const pollInterval = 250 * time.Millisecond

// Runner drives one scenario through a Manager from creation to a terminal
// phase, with no server or observer attached beyond this process's writer.
type Runner struct {
	cfg *Config
	mgr *sessionmgr.Manager
}

// NewRunner creates a Runner that will run cfg.ScenarioPath against mgr.
func NewRunner(cfg *Config, mgr *sessionmgr.Manager) *Runner {
	return &Runner{cfg: cfg, mgr: mgr}
}

// Run loads the scenario, creates and starts a session, streams its events
// to writer in the configured format, and blocks until the session reaches
// a terminal phase or cfg.Timeout elapses.
func (r *Runner) Run(ctx context.Context, writer io.Writer) (*Result, error) {
	printer := NewPrinter(writer, r.cfg.OutputFormat, r.cfg.Quiet, r.cfg.Verbose)

	sc, err := scenario.LoadFile(r.cfg.ScenarioPath)
	if err != nil {
		printer.SetResult("error", ExitInvalidInput, err)
		return printer.GetResult(), err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	state, err := r.mgr.Create(runCtx, *sc, "")
	if err != nil {
		printer.SetResult("error", ExitError, err)
		return printer.GetResult(), fmt.Errorf("create session: %w", err)
	}
	printer.SetSessionID(state.SessionID)

	log, err := r.mgr.Log(state.SessionID)
	if err != nil {
		printer.SetResult("error", ExitError, err)
		return printer.GetResult(), err
	}
	unsubscribe := log.Bus().SubscribeToSession(state.SessionID, printer.HandleEvent)
	defer unsubscribe()

	if err := r.mgr.Start(runCtx, state.SessionID); err != nil {
		printer.SetResult("error", ExitError, err)
		return printer.GetResult(), fmt.Errorf("start session: %w", err)
	}

	status, exitCode, err := r.waitForTerminal(runCtx, state.SessionID)
	if status == "timeout" {
		_ = r.mgr.Abort(context.Background(), state.SessionID, "headless run timed out")
	}
	printer.SetResult(status, exitCode, err)
	printer.PrintFinalResult()
	return printer.GetResult(), err
}

// waitForTerminal polls the session until it reaches a terminal phase, ctx
// is cancelled, or the configured timeout elapses.
func (r *Runner) waitForTerminal(ctx context.Context, sessionID string) (status string, exitCode ExitCode, err error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "timeout", ExitTimeout, ctx.Err()
			}
			return "aborted", ExitAborted, ctx.Err()

		case <-ticker.C:
			state, err := r.mgr.Get(sessionID)
			if err != nil {
				return "error", ExitError, err
			}
			if !state.IsTerminal() {
				continue
			}
			if state.Phase == types.PhaseAborted {
				return "aborted", ExitAborted, nil
			}
			return "completed", ExitSuccess, nil
		}
	}
}
