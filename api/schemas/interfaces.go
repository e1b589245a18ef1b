package schemas

import "context"

// -- LLM Schemas & Interface --

// ModelTier selects between the fast and the powerful model of a provider.
// Field-level answers ride the fast tier; letter drafting and résumé parsing
// ride the powerful tier.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions carries the advanced generation parameters a caller may
// tune per request.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
	ForceJSONFormat bool    `json:"force_json_format,omitempty"`
}

// GenerationRequest encapsulates a complete request to the LLM: system and
// user prompts, the desired model tier, and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient is the provider-agnostic text generation interface.
type LLMClient interface {
	// Generate produces a completion for the request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// -- User Interaction Interface --

// Asker is the synchronous human-in-the-loop channel. Implementations may be
// a terminal, a chat bot, or a scripted responder in tests; calls block until
// the user answers or ctx is cancelled.
type Asker interface {
	// AskFreeText poses an open question and returns the raw reply. An empty
	// reply means the user skipped the question.
	AskFreeText(ctx context.Context, prompt string) (string, error)
	// AskChoice poses a closed question; the reply must resolve to one of
	// options, by index, exact label, or unique substring. A zero Option
	// means the user skipped.
	AskChoice(ctx context.Context, prompt string, options []Option) (Option, error)
	// AskMultiChoice is AskChoice for multi-select questions; an empty slice
	// means the user skipped.
	AskMultiChoice(ctx context.Context, prompt string, options []Option) ([]Option, error)
	// Confirm poses a yes/no question.
	Confirm(ctx context.Context, prompt string) (bool, error)
}
