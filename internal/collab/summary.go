package collab

import (
	"context"
	"fmt"

	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/pkg/types"
)

const summarySystemPrompt = `You are a conversation summarizer. Create a concise summary of the
discussion that preserves key context: what was discussed, points of
agreement or disagreement, and any conclusions reached. Be concise but
detailed enough that someone could catch up from the summary alone.`

// SummaryService asks a ModelClient for a prose summary of a session's
// discussion and records it as a summary.generated event. Distinct from
// the event log's own byCount pruning summary (log.summary): this is a
// reader-facing recap, not a retention mechanism.
type SummaryService struct {
	client modelclient.ModelClient
	log    *eventlog.Log
}

// NewSummaryService creates a SummaryService.
func NewSummaryService(client modelclient.ModelClient, log *eventlog.Log) *SummaryService {
	return &SummaryService{client: client, log: log}
}

// Generate summarizes the transcript and appends a summary.generated
// event.
func (s *SummaryService) Generate(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf("Topic: %s\n\nTranscript:\n%s", topic, transcript(s.log, 0))
	summary, err := ask(ctx, s.client, summarySystemPrompt, prompt, 600)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	if _, err := s.log.Append(ctx, types.EventSummaryGenerated, "", map[string]any{
		"summary": summary,
	}, false); err != nil {
		return "", fmt.Errorf("append summary event: %w", err)
	}
	return summary, nil
}
