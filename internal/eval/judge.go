package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/openrounds/rounds/internal/api"
	"github.com/openrounds/rounds/internal/extract"
)

// Judgment is one semantic-quality verdict from the judge model.
type Judgment struct {
	// Score is in [0,1].
	Score float64 `json:"score"`
	// Reasoning explains the score.
	Reasoning string `json:"reasoning"`
	// Strengths and Weaknesses itemize the verdict.
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
}

// DefaultJudgment is substituted when a judge response cannot be parsed. The
// neutral 0.5 keeps one garbled response from deciding a dimension either way.
func DefaultJudgment() Judgment {
	return Judgment{Score: 0.5, Reasoning: "judge response could not be parsed; neutral score substituted"}
}

// Judge scores free-form output semantically. An error return means the
// judged component is unavailable; callers degrade to deterministic-only
// scoring rather than failing.
type Judge interface {
	Judge(ctx context.Context, prompt string) (Judgment, error)
}

// CompleterJudge runs judgments through a model completion capability.
type CompleterJudge struct {
	completer api.Completer
}

// NewCompleterJudge wraps a completer as a Judge.
func NewCompleterJudge(completer api.Completer) *CompleterJudge {
	return &CompleterJudge{completer: completer}
}

const judgeSystemPrompt = `You are an evaluation judge for a health-data analysis system.
Score the material you are given strictly against the stated criteria.
Respond with a single JSON object:
{"score": <0.0-1.0>, "reasoning": "<one paragraph>", "strengths": [...], "weaknesses": [...]}`

// Judge makes one no-tool model call and parses the first JSON object in the
// response, tolerating prose before or after it. Unparsable responses yield
// the default judgment, not an error.
func (j *CompleterJudge) Judge(ctx context.Context, prompt string) (Judgment, error) {
	completion, err := j.completer.Complete(ctx, api.CompletionRequest{
		System:    judgeSystemPrompt,
		Messages:  []api.Message{api.UserMessage(prompt)},
		MaxTokens: 2048,
		Agent:     "judge",
		PromptID:  "judgment",
	})
	if err != nil {
		return Judgment{}, fmt.Errorf("judge call: %w", err)
	}
	return ParseJudgment(completion.Text()), nil
}

// ParseJudgment extracts a Judgment from free text. Any parse failure falls
// back to DefaultJudgment.
func ParseJudgment(text string) Judgment {
	raw, ok := extract.FirstJSONObject(text)
	if !ok {
		log.Printf("[eval] no JSON object in judge response")
		return DefaultJudgment()
	}
	var judgment Judgment
	if err := json.Unmarshal([]byte(raw), &judgment); err != nil {
		log.Printf("[eval] malformed judge response: %v", err)
		return DefaultJudgment()
	}
	if judgment.Score < 0 {
		judgment.Score = 0
	}
	if judgment.Score > 1 {
		judgment.Score = 1
	}
	return judgment
}
