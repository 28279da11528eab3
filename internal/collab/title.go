package collab

import (
	"context"
	"fmt"
	"sync"

	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/pkg/types"
)

const titleSystemPrompt = `You label discussions with a short topic title. Reply with the title
only, nothing else.

Rules:
- 6 words or fewer
- No trailing punctuation
- No quotes around the title
- Describe the topic, not the act of discussing it`

const titleMaxLen = 80

// TitleGenerator infers a short topic label from the first few exchanges
// of a discussion and records it once as a title.generated event. It
// fires at most once per session: after that it is a no-op.
type TitleGenerator struct {
	client modelclient.ModelClient
	log    *eventlog.Log

	mu   sync.Mutex
	done bool
}

// NewTitleGenerator creates a TitleGenerator.
func NewTitleGenerator(client modelclient.ModelClient, log *eventlog.Log) *TitleGenerator {
	return &TitleGenerator{client: client, log: log}
}

// MaybeGenerate infers and records a title once at least minSpeeches
// speech.complete events exist. Safe to call after every turn; it is a
// no-op once a title has already been generated or too little has been
// said yet.
func (g *TitleGenerator) MaybeGenerate(ctx context.Context, topic string, minSpeeches int) (string, error) {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		return "", nil
	}
	speeches := g.log.GetByType(types.EventSpeechComplete)
	if len(speeches) < minSpeeches {
		g.mu.Unlock()
		return "", nil
	}
	g.done = true
	g.mu.Unlock()

	prompt := fmt.Sprintf("Topic: %s\n\nTranscript:\n%s", topic, transcript(g.log, 0))
	reply, err := ask(ctx, g.client, titleSystemPrompt, prompt, 32)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	title := firstLine(reply, titleMaxLen)
	if title == "" {
		return "", nil
	}

	if _, err := g.log.Append(ctx, types.EventTitleGenerated, "", map[string]any{
		"title": title,
	}, false); err != nil {
		return "", fmt.Errorf("append title event: %w", err)
	}
	return title, nil
}
