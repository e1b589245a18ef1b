// File: internal/runner/interfaces.go

// Package runner drives one application run end to end: resolve the form
// page, draft the letter, discover and answer the form, fill it, and submit,
// with a human approval gate before anything irreversible.
package runner

import (
	"context"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/jobpage"
)

// The pipeline depends on its stages through narrow contracts so tests can
// script each one. The concrete implementations live in internal/form,
// internal/judge, internal/jobpage, internal/llm and internal/browser.

// PageDriver is the slice of the browser session the runner touches directly.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// PageJudge finds the page actually carrying the application form.
type PageJudge interface {
	Resolve(ctx context.Context, startURL string) (*schemas.JudgeResult, error)
}

// JobCapturer reads the posting off the rendered page.
type JobCapturer interface {
	Capture(ctx context.Context, page jobpage.PageSource) (*schemas.JobPosting, error)
}

// LetterDrafter produces the role summary and cover letter, and reports the
// questions its batch pass refused to answer.
type LetterDrafter interface {
	DraftLetter(ctx context.Context, jobTitle, company, jobText string, contact *schemas.ContactProfile) (summary, letter string, err error)
	Skips() []schemas.SkippedField
}

// FieldScanner discovers the form's controls.
type FieldScanner interface {
	Scan(ctx context.Context) ([]schemas.FieldDescriptor, error)
}

// OptionHarvester reads the option vocabulary of a synthetic combobox.
type OptionHarvester interface {
	OpenAndHarvest(ctx context.Context, d *schemas.FieldDescriptor) ([]schemas.Option, error)
}

// ValuePlanner decides one value per logical question.
type ValuePlanner interface {
	Plan(ctx context.Context, fields []schemas.FieldDescriptor) (map[string]schemas.PlannedValue, []schemas.SkippedField, error)
	Reask(ctx context.Context, fields []schemas.FieldDescriptor) (map[string]schemas.PlannedValue, error)
	SetCoverLetter(text string)
	Skips() []schemas.SkippedField
}

// FieldBinder writes planned values into live controls.
type FieldBinder interface {
	Bind(ctx context.Context, d *schemas.FieldDescriptor, pv schemas.PlannedValue) error
	BindGroup(ctx context.Context, group []*schemas.FieldDescriptor, pv schemas.PlannedValue) error
}

// FormSubmitter fires the submit trigger and reads the page's verdict.
type FormSubmitter interface {
	Submit(ctx context.Context) (string, error)
	DetectSuccess(ctx context.Context) bool
}
