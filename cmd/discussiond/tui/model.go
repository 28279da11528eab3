package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	"charm.land/lipgloss/v2"

	"github.com/roundtable/engine/pkg/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	systemStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// frameMsg wraps a decoded SSE frame as a bubbletea message.
type frameMsg frame

// streamClosedMsg signals the SSE stream ended (session finished or
// connection dropped).
type streamClosedMsg struct{ err error }

// commandResultMsg reports the outcome of a REST command issued from the
// input line.
type commandResultMsg struct {
	action string
	err    error
}

// Model is the bubbletea root model for the session observer TUI.
type Model struct {
	client *Client
	frames <-chan frame

	sessionID string
	phase     types.Phase
	round     int
	speaker   string

	lines    []string
	viewport viewport.Model
	input    textinput.Model

	width, height int
	status        string
}

// New creates the root model for watching sessionID through client.
// frames is the channel returned by Client.Stream.
func New(client *Client, frames <-chan frame, sessionID string) Model {
	ti := textinput.New()
	ti.Placeholder = "speak, or /pause /resume /end /intervention <0-3>"

	vp := viewport.New(0, 0)

	return Model{
		client:    client,
		frames:    frames,
		sessionID: sessionID,
		viewport:  vp,
		input:     ti,
	}
}

// Init starts listening for stream frames and focuses the input line.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForFrame(m.frames), m.input.Focus())
}

// waitForFrame returns a Cmd that blocks for the next frame, then
// re-schedules itself; this is the standard bubbletea pattern for
// bridging an external channel into the Update loop.
func waitForFrame(frames <-chan frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return streamClosedMsg{}
		}
		return frameMsg(f)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.input.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			return m.handleSubmit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case frameMsg:
		m.applyFrame(frame(msg))
		return m, waitForFrame(m.frames)

	case streamClosedMsg:
		m.status = "stream closed"
		if msg.err != nil {
			m.status = fmt.Sprintf("stream closed: %v", msg.err)
		}
		return m, nil

	case commandResultMsg:
		if msg.err != nil {
			m.appendLine(errorStyle.Render(fmt.Sprintf("%s failed: %v", msg.action, msg.err)))
		} else {
			m.appendLine(systemStyle.Render(fmt.Sprintf("%s ok", msg.action)))
		}
		return m, nil
	}

	return m, nil
}

// handleSubmit interprets the input line as either a slash command or a
// speak:request.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if content == "" {
		return m, nil
	}

	if strings.HasPrefix(content, "/") {
		return m, m.runSlashCommand(content)
	}

	m.appendLine(fmt.Sprintf("%s %s", agentStyle.Render("you:"), content))
	client := m.client
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return commandResultMsg{action: "speak", err: client.Speak(ctx, content)}
	}
}

func (m Model) runSlashCommand(cmd string) tea.Cmd {
	client := m.client
	fields := strings.Fields(cmd)
	name := fields[0]

	switch name {
	case "/pause", "/resume", "/end":
		action := strings.TrimPrefix(name, "/")
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			return commandResultMsg{action: action, err: client.Control(ctx, action)}
		}
	case "/intervention":
		level := 0
		if len(fields) > 1 {
			fmt.Sscanf(fields[1], "%d", &level)
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			return commandResultMsg{action: "intervention", err: client.SetIntervention(ctx, level)}
		}
	default:
		return func() tea.Msg {
			return commandResultMsg{action: name, err: fmt.Errorf("unknown command")}
		}
	}
}

// applyFrame updates model state from one decoded SSE frame.
func (m *Model) applyFrame(f frame) {
	switch f.event {
	case "state_update":
		var state struct {
			Status           types.Phase `json:"status"`
			CurrentRound     int         `json:"currentRound"`
			CurrentSpeakerID string      `json:"currentSpeakerId"`
		}
		if err := json.Unmarshal(f.data, &state); err == nil {
			m.phase = state.Status
			m.round = state.CurrentRound
			m.speaker = state.CurrentSpeakerID
		}
	case "world_event":
		var e types.Event
		if err := json.Unmarshal(f.data, &e); err == nil {
			m.appendEvent(e)
		}
	case "agent:thinking":
		var payload map[string]any
		json.Unmarshal(f.data, &payload)
		if agentID, _ := payload["agentID"].(string); agentID != "" {
			m.appendLine(systemStyle.Render(fmt.Sprintf("%s is thinking...", agentID)))
		}
	case "simulation_ended":
		m.appendLine(headerStyle.Render("session ended"))
	}
}

func (m *Model) appendEvent(e types.Event) {
	switch e.Type {
	case types.EventSpeechComplete:
		content, _ := e.Payload["content"].(string)
		m.appendLine(fmt.Sprintf("%s %s", agentStyle.Render(e.AgentID+":"), content))
	case types.EventRoundAdvanced:
		m.appendLine(systemStyle.Render(fmt.Sprintf("-- round %d --", m.round)))
	case types.EventSessionAborted:
		reason, _ := e.Payload["reason"].(string)
		m.appendLine(errorStyle.Render(fmt.Sprintf("session aborted: %s", reason)))
	default:
		m.appendLine(systemStyle.Render(string(e.Type)))
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	header := headerStyle.Render(fmt.Sprintf("discussiond — session %s  phase=%s round=%d speaker=%s",
		m.sessionID, m.phase, m.round, m.speaker))
	status := systemStyle.Render(m.status)
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), m.input.View(), status)
}
