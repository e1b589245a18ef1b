package schemas

// -- Page Judge Schemas --

// Judge status verdicts.
const (
	JudgeFormFound    = "form_found"
	JudgeApplyMissing = "apply_missing_or_failed"
)

// StepRecord traces one action taken while hunting for the application form.
type StepRecord struct {
	Action    string `json:"action"`
	URLBefore string `json:"url_before"`
	URLAfter  string `json:"url_after,omitempty"`
	Note      string `json:"note,omitempty"`
}

// JudgeResult is the persisted outcome of form-page resolution: where the
// hunt started, where it ended, and every hop in between.
type JudgeResult struct {
	StartURL    string       `json:"start_url"`
	FinalURL    string       `json:"final_url,omitempty"`
	Status      string       `json:"status"`
	Provider    string       `json:"provider"`
	Steps       []StepRecord `json:"steps"`
	FormFound   bool         `json:"form_found"`
	FormInFrame bool         `json:"form_in_iframe"`
	Errors      []string     `json:"errors,omitempty"`
}
