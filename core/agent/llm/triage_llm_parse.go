package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrUnparseableAnswer is returned when no JSON object can be recovered from
// a completion.
var ErrUnparseableAnswer = errors.New("completion did not contain a JSON object")

// TriageAnswer is the object the triage prompt asks the model to return.
// Every field is optional; validation happens in the rule engine.
type TriageAnswer struct {
	Summary  string  `json:"summary"`
	Priority string  `json:"priority"`
	Action   *string `json:"action"`
	DueDate  *string `json:"dueDate"`
}

// DecodeTriageAnswer strips Markdown fences and surrounding prose and decodes
// the outermost {...} span.
func DecodeTriageAnswer(text string) (*TriageAnswer, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, ErrUnparseableAnswer
	}

	var raw struct {
		Summary  any     `json:"summary"`
		Priority any     `json:"priority"`
		Action   *string `json:"action"`
		DueDate  *string `json:"dueDate"`
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableAnswer, err)
	}

	return &TriageAnswer{
		Summary:  asString(raw.Summary),
		Priority: asString(raw.Priority),
		Action:   raw.Action,
		DueDate:  raw.DueDate,
	}, nil
}

// asString tolerates models that emit numbers or nulls for text fields.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
