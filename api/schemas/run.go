package schemas

import "time"

// -- Application Run Schemas --

// RunState enumerates the states of one application run. Transitions are
// strictly sequential except NeedsUserInput, which loops back to Planning.
type RunState string

const (
	StateScanning           RunState = "scanning"
	StateHarvesting         RunState = "harvesting"
	StatePlanning           RunState = "planning"
	StateAwaitingApproval   RunState = "awaiting-approval"
	StateBinding            RunState = "binding"
	StateRecheckingRequired RunState = "rechecking-required"
	StateSubmitting         RunState = "submitting"
	StateNeedsUserInput     RunState = "needs-user-input"
	StateDone               RunState = "done"
	StateAborted            RunState = "aborted"
)

// Terminal reports whether the state ends the run.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// SubmissionOutcome is the best-effort verdict after a submit attempt. An
// unknown outcome is not evidence of failure; the post-submit screenshot is
// the ground truth for the operator.
type SubmissionOutcome string

const (
	SubmissionConfirmed SubmissionOutcome = "confirmed"
	SubmissionUnknown   SubmissionOutcome = "unknown"
	SubmissionNotTried  SubmissionOutcome = "not-attempted"
)

// RunRecord is one row of the local run ledger, written when a run reaches a
// terminal state.
type RunRecord struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	ResolvedURL  string            `json:"resolved_url,omitempty"`
	ATS          string            `json:"ats,omitempty"`
	State        RunState          `json:"state"`
	Submission   SubmissionOutcome `json:"submission"`
	FieldsFound  int               `json:"fields_found"`
	FieldsBound  int               `json:"fields_bound"`
	Unresolved   int               `json:"unresolved"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	ArtifactsDir string            `json:"artifacts_dir,omitempty"`
}

// UnresolvedField names a required field that survived the recheck loop
// without a bound value. Runs never leave these implicit.
type UnresolvedField struct {
	Field   string `json:"field"`
	Group   string `json:"group,omitempty"`
	Attempt string `json:"attempted_value,omitempty"`
	Reason  string `json:"reason"`
}
