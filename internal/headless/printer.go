package headless

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/roundtable/engine/pkg/types"
)

// Printer renders a session's events in one of the supported output
// formats as they arrive from the bus, and accumulates a final Result.
type Printer struct {
	mu          sync.Mutex
	writer      io.Writer
	format      OutputFormat
	quiet       bool
	verbose     bool
	unsubscribe func()

	startTime time.Time
	result    *Result
	round     int
}

// NewPrinter creates a Printer writing to writer in the given format.
func NewPrinter(writer io.Writer, format OutputFormat, quiet, verbose bool) *Printer {
	return &Printer{
		writer:    writer,
		format:    format,
		quiet:     quiet,
		verbose:   verbose,
		startTime: time.Now(),
		result: &Result{
			Status:   "running",
			ExitCode: ExitSuccess,
		},
	}
}

// Unsubscribe stops listening to the bus, if Subscribe was called.
func (p *Printer) Unsubscribe() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

// SetUnsubscribe records the function that detaches this printer from a
// bus subscription, so Unsubscribe can release it later.
func (p *Printer) SetUnsubscribe(fn func()) {
	p.unsubscribe = fn
}

// SetSessionID records the session this printer is rendering.
func (p *Printer) SetSessionID(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.SessionID = sessionID
}

// GetResult returns the accumulated Result, with duration finalized.
func (p *Printer) GetResult() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.DurationMS = time.Since(p.startTime).Milliseconds()
	return p.result
}

// SetResult finalizes the result's terminal status.
func (p *Printer) SetResult(status string, exitCode ExitCode, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Status = status
	p.result.ExitCode = exitCode
	if err != nil {
		p.result.Error = err.Error()
	}
	p.result.DurationMS = time.Since(p.startTime).Milliseconds()
}

// SetRounds records how many rounds the discussion reached.
func (p *Printer) SetRounds(rounds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Rounds = rounds
}

// PrintFinalResult writes the accumulated Result as JSON (json format only;
// jsonl and text formats stream progress continuously instead).
func (p *Printer) PrintFinalResult() {
	if p.format != OutputJSON {
		return
	}
	data, err := json.MarshalIndent(p.GetResult(), "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(p.writer, string(data))
}

// HandleEvent is the bus.Subscriber this printer registers for a session.
func (p *Printer) HandleEvent(e types.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.track(e)

	switch p.format {
	case OutputText:
		p.printText(e)
	case OutputJSONL:
		p.printJSONL(e)
	case OutputJSON:
		// json format emits only the final Result, via PrintFinalResult.
	}
}

func (p *Printer) track(e types.Event) {
	switch e.Type {
	case types.EventRoundAdvanced:
		p.round++
		p.result.Rounds = p.round
	case types.EventSpeechComplete:
		content, _ := e.Payload["content"].(string)
		p.result.Turns = append(p.result.Turns, TurnSummary{
			Round:   p.round,
			AgentID: e.AgentID,
			Content: content,
		})
	}
}

func (p *Printer) printText(e types.Event) {
	if p.quiet && e.Type != types.EventSpeechComplete {
		return
	}
	switch e.Type {
	case types.EventSessionStarted:
		fmt.Fprintf(p.writer, "[session:%s] starting\n", truncateID(p.result.SessionID))
	case types.EventRoundAdvanced:
		fmt.Fprintf(p.writer, "\n-- round %d --\n", p.round)
	case types.EventSpeechComplete:
		content, _ := e.Payload["content"].(string)
		fmt.Fprintf(p.writer, "[%s] %s\n", e.AgentID, content)
	case types.EventTurnGranted:
		if p.verbose {
			fmt.Fprintf(p.writer, "[turn] granted to %s\n", e.AgentID)
		}
	case types.EventInterventionChanged:
		if p.verbose {
			level, _ := e.Payload["level"]
			fmt.Fprintf(p.writer, "[moderator] intervention level: %v\n", level)
		}
	case types.EventModeratorCall:
		reason, _ := e.Payload["reason"].(string)
		fmt.Fprintf(p.writer, "[moderator] calling on %s (%s)\n", e.AgentID, reason)
	case types.EventSpeakerTimeout:
		fmt.Fprintf(p.writer, "[moderator] %s timed out\n", e.AgentID)
	case types.EventSessionPaused:
		fmt.Fprintln(p.writer, "[session] paused")
	case types.EventSessionResumed:
		fmt.Fprintln(p.writer, "[session] resumed")
	case types.EventSessionEnded:
		fmt.Fprintf(p.writer, "\n[done] session completed in %s\n", formatDuration(time.Since(p.startTime)))
	case types.EventSessionAborted:
		reason, _ := e.Payload["reason"].(string)
		fmt.Fprintf(p.writer, "\n[aborted] %s\n", reason)
	}
}

func (p *Printer) printJSONL(e types.Event) {
	if !p.verbose && !isImportantEvent(e.Type) {
		return
	}
	data, err := json.Marshal(NewEvent(string(e.Type), e))
	if err != nil {
		return
	}
	fmt.Fprintln(p.writer, string(data))
}

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func isImportantEvent(t types.EventType) bool {
	switch t {
	case types.EventSessionStarted,
		types.EventSessionPaused,
		types.EventSessionResumed,
		types.EventSessionEnded,
		types.EventSessionAborted,
		types.EventRoundAdvanced,
		types.EventSpeechComplete,
		types.EventInterventionChanged,
		types.EventModeratorCall,
		types.EventSpeakerTimeout:
		return true
	default:
		return false
	}
}
