package out

import "context"

// LLMPort sends one system+user prompt pair to a chat completion endpoint
// and returns the raw text of the first choice. Implementations retry rate
// limits themselves; any returned error is final.
type LLMPort interface {
	CompleteWithSystem(ctx context.Context, system, user string) (string, error)
}
