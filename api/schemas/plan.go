package schemas

import "time"

// -- Value Planning Schemas --

// Provenance records where a planned value came from. It is persisted with
// the answers record so a reviewer can audit every filled field.
type Provenance string

const (
	ProvenanceProfile      Provenance = "profile"
	ProvenanceAIInferred   Provenance = "ai-inferred"
	ProvenanceUserProvided Provenance = "user-provided"
)

// PlannedValue is the transient decision for one field (or one radio/checkbox
// group). It is created by the planner, consumed by the binder, and survives
// a run only through the answers record.
type PlannedValue struct {
	// Text carries the value for text-like fields and file uploads; Values
	// carries the chosen option values for choice-type fields; Checked is
	// used for lone checkboxes with no option vocabulary.
	Text    string     `json:"text,omitempty"`
	Values  []string   `json:"values,omitempty"`
	Checked bool       `json:"checked,omitempty"`
	Source  Provenance `json:"provenance"`
}

// IsZero reports whether the planner produced no usable value.
func (pv PlannedValue) IsZero() bool {
	return pv.Text == "" && len(pv.Values) == 0 && !pv.Checked
}

// AnswerRecord is the persisted form of one planning decision, written to the
// run's data directory after binding.
type AnswerRecord struct {
	Field      string     `json:"field"`
	Key        string     `json:"canonical_key,omitempty"`
	Group      string     `json:"group,omitempty"`
	Value      string     `json:"value,omitempty"`
	Values     []string   `json:"values,omitempty"`
	Provenance Provenance `json:"provenance"`
	Bound      bool       `json:"bound"`
	Failure    string     `json:"failure,omitempty"`
}

// SkippedField records a question deliberately not answered automatically,
// with the policy reason (personal preference, no evidence, harvest failure).
type SkippedField struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// AnswersDocument is the JSON artifact bundling every decision of one run.
type AnswersDocument struct {
	RunID     string         `json:"run_id"`
	URL       string         `json:"url"`
	CreatedAt time.Time      `json:"created_at"`
	Answers   []AnswerRecord `json:"answers"`
	Skipped   []SkippedField `json:"skipped,omitempty"`
}
