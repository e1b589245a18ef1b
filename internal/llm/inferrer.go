// File: internal/llm/inferrer.go
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/llmutil"
)

// unknownSentinel is the reply the field-inference prompt mandates when the
// résumé does not answer the question. Distinguishes "no answer" from an
// empty completion.
const unknownSentinel = "UNKNOWN"

// personalPatterns match questions the inferrer must never answer on the
// candidate's behalf: compensation, availability, work mode, demographics,
// immigration. These route to the human instead.
var personalPatterns = regexp.MustCompile(`(?i)\b(ctc|salary|compensation|package|expected\s+pay|notice\s*period|last\s*working|lwd|joining|buyout|work\s*from\s*home|wfh|wfo|hybrid|shifts?|relocat\w*|preferred\s*location|travel\s*willing\w*|gender|age|date\s*of\s*birth|dob|marital|bond|nda|non-?compete|visa|sponsor\w*|clearance|veteran|disability|ethnic\w*|race)\b`)

// BatchField is one form question handed to the one-shot answering pass.
type BatchField struct {
	ID       string
	Question string
	Required bool
	Options  []schemas.Option
	Multiple bool
}

// batchSkip mirrors the skip entries of the batch answer contract.
type batchSkip struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Reason   string `json:"reason"`
}

// batchDocument is the JSON document the batch prompt demands.
type batchDocument struct {
	Answers map[string]any `json:"answers"`
	Skipped []batchSkip    `json:"skipped"`
}

// Inferrer is the AI collaborator of the planner: per-field inference with an
// optional pre-seeded batch pass, plus résumé parsing and letter drafting.
// Inference is best-effort and never authoritative for choice fields; the
// planner validates every answer against harvested options.
type Inferrer struct {
	client      schemas.LLMClient
	resumeText  string
	temperature float64
	logger      *zap.Logger

	mu      sync.Mutex
	answers map[string][]string
	skipped map[string]string
}

// NewInferrer builds an inferrer over one résumé text.
func NewInferrer(client schemas.LLMClient, resumeText string, temperature float64, logger *zap.Logger) *Inferrer {
	return &Inferrer{
		client:      client,
		resumeText:  resumeText,
		temperature: temperature,
		logger:      logger.Named("llm.inferrer"),
		answers:     make(map[string][]string),
		skipped:     make(map[string]string),
	}
}

// InferField answers one question from the résumé. ok is false when the
// question is a personal/preference matter, when a batch pass already skipped
// it, or when the model answers UNKNOWN. For choice questions the caller
// passes the harvested options; the reply is only a candidate and must still
// be validated against them.
func (in *Inferrer) InferField(ctx context.Context, fieldID, question string, options []schemas.Option) (string, bool, error) {
	if personalPatterns.MatchString(question) {
		in.note(fieldID, question, "personal or preference question, deferred to candidate")
		return "", false, nil
	}

	if vals, ok := in.cached(fieldID); ok {
		if len(vals) == 0 {
			return "", false, nil
		}
		return vals[0], true, nil
	}
	if _, skippedEarlier := in.skipReason(fieldID); skippedEarlier {
		return "", false, nil
	}

	if strings.TrimSpace(in.resumeText) == "" {
		return "", false, nil
	}

	out, err := in.client.Generate(ctx, schemas.GenerationRequest{
		UserPrompt: buildFieldInferencePrompt(question, options, in.resumeText),
		Tier:       schemas.TierFast,
		Options:    schemas.GenerationOptions{Temperature: in.temperature},
	})
	if err != nil {
		return "", false, fmt.Errorf("field inference for %q: %w", question, err)
	}

	out = strings.TrimSpace(llmutil.CleanTextOutput(out))
	if out == "" || strings.EqualFold(out, unknownSentinel) {
		return "", false, nil
	}
	return out, true, nil
}

// AnswerBatch runs the one-shot answering pass and seeds the inference cache.
// Failures leave the cache empty so the per-field path still works.
func (in *Inferrer) AnswerBatch(ctx context.Context, fields []BatchField) error {
	if len(fields) == 0 || strings.TrimSpace(in.resumeText) == "" {
		return nil
	}

	out, err := in.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: batchAnswerSystemPrompt,
		UserPrompt:   buildBatchAnswerPrompt(fields, in.resumeText),
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     in.temperature,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return fmt.Errorf("batch answer pass: %w", err)
	}

	doc, err := llmutil.ParseJSONResponse[batchDocument](out)
	if err != nil {
		return fmt.Errorf("batch answer pass: %w", err)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	for id, raw := range doc.Answers {
		in.answers[id] = normalizeAnswer(raw)
	}
	for _, s := range doc.Skipped {
		in.skipped[s.ID] = s.Reason
	}
	in.logger.Info("Batch answer pass complete",
		zap.Int("answered", len(doc.Answers)),
		zap.Int("skipped", len(doc.Skipped)))
	return nil
}

// CachedAnswer returns the batch answer for a field, when one exists.
func (in *Inferrer) CachedAnswer(fieldID string) ([]string, bool) {
	return in.cached(fieldID)
}

// SkipReason reports why the batch pass skipped a field.
func (in *Inferrer) SkipReason(fieldID string) (string, bool) {
	return in.skipReason(fieldID)
}

// Skips returns every recorded skip for the artifacts record.
func (in *Inferrer) Skips() []schemas.SkippedField {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]schemas.SkippedField, 0, len(in.skipped))
	for field, reason := range in.skipped {
		out = append(out, schemas.SkippedField{Field: field, Reason: reason})
	}
	return out
}

// DraftLetter produces the role summary and tailored cover letter. When the
// model omits the letter marker a deterministic fallback letter is composed
// so the approval checkpoint always has text to show.
func (in *Inferrer) DraftLetter(ctx context.Context, jobTitle, company, jobText string, contact *schemas.ContactProfile) (summary, letter string, err error) {
	out, err := in.client.Generate(ctx, schemas.GenerationRequest{
		UserPrompt: buildLetterPrompt(jobText, in.resumeText),
		Tier:       schemas.TierPowerful,
		Options:    schemas.GenerationOptions{Temperature: 0.6},
	})
	if err != nil {
		return "", "", fmt.Errorf("letter drafting: %w", err)
	}

	out = llmutil.CleanTextOutput(out)
	if idx := strings.Index(out, "COVER LETTER:"); idx >= 0 {
		summary = strings.TrimSpace(strings.ReplaceAll(out[:idx], "SUMMARY:", ""))
		letter = strings.TrimSpace(out[idx+len("COVER LETTER:"):])
	} else {
		summary = strings.TrimSpace(out)
	}

	if letter == "" {
		name := ""
		if contact != nil {
			name = contact.Name()
		}
		letter = fmt.Sprintf("Dear Hiring Team,\n\nI'm excited about the %s role at %s. I bring relevant skills and a strong interest in your mission.\n\nBest regards,\n%s",
			jobTitle, company, name)
	}
	return summary, letter, nil
}

// ParseResume turns raw résumé text into the structured contact profile.
func (in *Inferrer) ParseResume(ctx context.Context, resumeText string) (*schemas.ContactProfile, error) {
	out, err := in.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: resumeParsePrompt,
		UserPrompt:   buildResumeParseUserPrompt(resumeText),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("resume parsing: %w", err)
	}

	profile, err := llmutil.ParseJSONResponse[schemas.ContactProfile](out)
	if err != nil {
		return nil, fmt.Errorf("resume parsing: %w", err)
	}
	return profile, nil
}

func (in *Inferrer) cached(fieldID string) ([]string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	vals, ok := in.answers[fieldID]
	return vals, ok
}

func (in *Inferrer) skipReason(fieldID string) (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	r, ok := in.skipped[fieldID]
	return r, ok
}

func (in *Inferrer) note(fieldID, question, reason string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, exists := in.skipped[fieldID]; !exists {
		in.skipped[fieldID] = reason
		in.logger.Debug("Question withheld from inference",
			zap.String("question", question),
			zap.String("reason", reason))
	}
}

// normalizeAnswer flattens the mixed JSON value types the batch contract
// allows (string, bool, number, list of strings) into strings.
func normalizeAnswer(raw any) []string {
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	case bool:
		if v {
			return []string{"Yes"}
		}
		return []string{"No"}
	case float64:
		return []string{strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return nil
	}
}
