package collab

import (
	"context"
	"fmt"

	"github.com/roundtable/engine/internal/eventlog"
	"github.com/roundtable/engine/internal/modelclient"
	"github.com/roundtable/engine/pkg/types"
)

const judgeSystemPrompt = `You evaluate a discussion's quality. Reply with exactly two parts:

SCORE: <a number from 0 to 10>
<one short paragraph of rationale>

Nothing else.`

// JudgeSystem asks a ModelClient to score a session's discussion and
// records the result as a judge.scored event.
type JudgeSystem struct {
	client modelclient.ModelClient
	log    *eventlog.Log
}

// NewJudgeSystem creates a JudgeSystem.
func NewJudgeSystem(client modelclient.ModelClient, log *eventlog.Log) *JudgeSystem {
	return &JudgeSystem{client: client, log: log}
}

// Score evaluates the full transcript and appends a judge.scored event
// carrying the numeric score and rationale.
func (j *JudgeSystem) Score(ctx context.Context, topic string) (float64, string, error) {
	prompt := fmt.Sprintf("Topic: %s\n\nTranscript:\n%s", topic, transcript(j.log, 0))
	reply, err := ask(ctx, j.client, judgeSystemPrompt, prompt, 300)
	if err != nil {
		return 0, "", fmt.Errorf("score discussion: %w", err)
	}

	score, rationale := parseLeadingScore(reply)

	if _, err := j.log.Append(ctx, types.EventJudgeScored, "", map[string]any{
		"score":     score,
		"rationale": rationale,
	}, false); err != nil {
		return 0, "", fmt.Errorf("append judge event: %w", err)
	}
	return score, rationale, nil
}
