package collab

import (
	"context"
	"fmt"

	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/pkg/types"
)

const outlineSystemPrompt = `You produce a discussion outline. Output only the outline, nothing else.

Rules:
- A short numbered list of the discussion's main points so far
- One line per point
- No preamble, no closing remarks`

// OutlineGenerator asks a ModelClient for a structural outline of a
// session's discussion so far and records it as an outline.generated
// event.
type OutlineGenerator struct {
	client modelclient.ModelClient
	log    *eventlog.Log
}

// NewOutlineGenerator creates an OutlineGenerator.
func NewOutlineGenerator(client modelclient.ModelClient, log *eventlog.Log) *OutlineGenerator {
	return &OutlineGenerator{client: client, log: log}
}

// Generate summarizes the transcript into an outline and appends an
// outline.generated event.
func (g *OutlineGenerator) Generate(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf("Topic: %s\n\nTranscript:\n%s", topic, transcript(g.log, 0))
	outline, err := ask(ctx, g.client, outlineSystemPrompt, prompt, 400)
	if err != nil {
		return "", fmt.Errorf("generate outline: %w", err)
	}

	if _, err := g.log.Append(ctx, types.EventOutlineGenerated, "", map[string]any{
		"outline": outline,
	}, false); err != nil {
		return "", fmt.Errorf("append outline event: %w", err)
	}
	return outline, nil
}
