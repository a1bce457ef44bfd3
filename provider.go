package autoquiz

import "context"

// Provider is one generative model service in the fallback chain. It takes
// a fully built prompt and returns the model's raw text output; parsing and
// validation are the orchestrator's job. Adding a third provider means
// implementing this interface and appending it to the chain; the
// orchestration contract does not change.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
