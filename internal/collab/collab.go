// Package collab implements the session's thin collaborators: small
// components that assemble a transcript-derived prompt, submit it to a
// ModelClient, and write the structured result back as an event. None of
// them own session state — they read the log and append to it.
package collab

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/pkg/types"
)

// transcript renders the most recent n speech.complete events (0 means
// all of them) as "[agentName]: content" lines, the shape every
// collaborator's prompt is built from.
func transcript(log *eventlog.Log, n int) string {
	events := log.GetByType(types.EventSpeechComplete)
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}

	var b strings.Builder
	for _, e := range events {
		if e.Type != types.EventSpeechComplete {
			continue
		}
		name, _ := e.Payload["agentName"].(string)
		if name == "" {
			name = e.AgentID
		}
		content, _ := e.Payload["content"].(string)
		fmt.Fprintf(&b, "[%s]: %s\n", name, content)
	}
	return b.String()
}

// ask runs a single non-streaming completion with systemPrompt against
// client and returns the trimmed reply text.
func ask(ctx context.Context, client modelclient.ModelClient, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	msg, err := client.Chat(ctx, modelclient.Request{
		Messages: []*schema.Message{
			{Role: schema.System, Content: systemPrompt},
			{Role: schema.User, Content: userPrompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

// firstLine returns the first non-empty line of s, truncated to maxLen.
func firstLine(s string, maxLen int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxLen {
			line = line[:maxLen]
		}
		return line
	}
	return ""
}

// parseLeadingScore extracts a numeric score from a reply of the form
// "SCORE: 7.5\n<rationale>", returning the remaining text as rationale.
// A reply with no parseable leading score is returned whole as rationale
// with a zero score.
func parseLeadingScore(reply string) (score float64, rationale string) {
	parts := strings.SplitN(reply, "\n", 2)
	head := strings.TrimSpace(parts[0])
	head = strings.TrimPrefix(strings.ToUpper(head), "SCORE:")
	head = strings.TrimSpace(head)
	if v, err := strconv.ParseFloat(head, 64); err == nil {
		if len(parts) == 2 {
			rationale = strings.TrimSpace(parts[1])
		}
		return v, rationale
	}
	return 0, reply
}
