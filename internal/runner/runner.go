// File: internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/artifacts"
	"github.com/xkilldash9x/applypilot/internal/form"
	"github.com/xkilldash9x/applypilot/internal/judge"
	"github.com/xkilldash9x/applypilot/internal/ledger"
)

// postSubmitSettle is how long the page gets to react after the submit click
// before the evidence screenshot and the success check.
var postSubmitSettle = 2500 * time.Millisecond

// ErrAborted marks a run the user stopped at one of the approval gates. The
// artifacts for the partial run are still written.
var ErrAborted = errors.New("run aborted by user")

// Deps carries the wired pipeline stages. Judge, Capturer, Drafter, Profile
// and Ledger may be nil; the corresponding stage is skipped.
type Deps struct {
	Page      PageDriver
	Judge     PageJudge
	Capturer  JobCapturer
	Drafter   LetterDrafter
	Scanner   FieldScanner
	Harvester OptionHarvester
	Planner   ValuePlanner
	Binder    FieldBinder
	Submitter FormSubmitter
	Asker     schemas.Asker
	Profile   *schemas.ContactProfile
	Store     *artifacts.Store
	Ledger    *ledger.Ledger
}

// Runner executes a single application run. One Runner serves one run.
type Runner struct {
	deps   Deps
	logger *zap.Logger

	state      schemas.RunState
	rec        *schemas.RunRecord
	answers    []schemas.AnswerRecord
	unresolved []schemas.UnresolvedField
}

// New validates the wiring and returns a runner ready for one Run call.
func New(deps Deps, logger *zap.Logger) (*Runner, error) {
	if deps.Page == nil || deps.Scanner == nil || deps.Harvester == nil ||
		deps.Planner == nil || deps.Binder == nil || deps.Submitter == nil ||
		deps.Asker == nil || deps.Store == nil {
		return nil, errors.New("runner is missing a required dependency")
	}
	return &Runner{deps: deps, logger: logger.Named("runner")}, nil
}

// Run drives the pipeline for one posting URL. The returned record is always
// usable, even when the error is non-nil: aborted and failed runs keep their
// artifacts and their ledger row.
func (r *Runner) Run(ctx context.Context, url string) (*schemas.RunRecord, error) {
	r.rec = &schemas.RunRecord{
		ID:           r.deps.Store.RunID(),
		URL:          url,
		State:        schemas.StateScanning,
		Submission:   schemas.SubmissionNotTried,
		StartedAt:    time.Now().UTC(),
		ArtifactsDir: r.deps.Store.Dir(),
	}
	r.state = r.rec.State
	r.warnPriorRuns(ctx, url)

	runErr := r.pipeline(ctx, url)
	if runErr != nil && !r.state.Terminal() {
		r.transition(schemas.StateAborted)
	}
	r.finalize(ctx)
	return r.rec, runErr
}

func (r *Runner) pipeline(ctx context.Context, url string) error {
	if err := r.resolvePage(ctx, url); err != nil {
		return err
	}
	if err := r.prepareLetter(ctx); err != nil {
		return err
	}

	fields, err := r.discover(ctx)
	if err != nil {
		return err
	}

	r.transition(schemas.StatePlanning)
	plan, _, err := r.deps.Planner.Plan(ctx, fields)
	if err != nil {
		return fmt.Errorf("planning answers: %w", err)
	}

	groups := form.GroupMembers(fields)

	r.transition(schemas.StateAwaitingApproval)
	approved, err := r.deps.Asker.Confirm(ctx,
		formatPlan(fields, groups, plan)+"\nProceed to fill the form now?")
	if err != nil {
		return fmt.Errorf("awaiting fill approval: %w", err)
	}
	if !approved {
		return fmt.Errorf("fill step declined: %w", ErrAborted)
	}

	r.transition(schemas.StateBinding)
	bound := r.bindAll(ctx, fields, groups, plan)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.recheck(ctx, bound); err != nil {
		return err
	}
	r.rec.FieldsBound = len(bound)

	if err := r.submit(ctx); err != nil {
		return err
	}

	r.transition(schemas.StateDone)
	return nil
}

// resolvePage lands the session on the page carrying the form. Without a
// judge the start URL is trusted as-is.
func (r *Runner) resolvePage(ctx context.Context, url string) error {
	if r.deps.Judge == nil {
		if err := r.deps.Page.Navigate(ctx, url); err != nil {
			return fmt.Errorf("opening %s: %w", url, err)
		}
		r.rec.ResolvedURL = url
		if loc, err := r.deps.Page.Location(ctx); err == nil && loc != "" {
			r.rec.ResolvedURL = loc
		}
		r.rec.ATS = judge.ClassifyATS(r.rec.ResolvedURL)
		return nil
	}

	res, err := r.deps.Judge.Resolve(ctx, url)
	if err != nil {
		return fmt.Errorf("resolving application page: %w", err)
	}
	_ = r.deps.Store.WriteJudgeResult(res)
	r.rec.ResolvedURL = res.FinalURL
	r.rec.ATS = res.Provider
	if !res.FormFound {
		return fmt.Errorf("no application form found starting from %s (status %s)", url, res.Status)
	}
	r.logger.Info("Application page resolved.",
		zap.String("url", res.FinalURL),
		zap.String("ats", res.Provider),
		zap.Int("hops", len(res.Steps)))

	// The judge finishes on the form page; re-navigate only if something
	// moved it afterwards.
	if loc, locErr := r.deps.Page.Location(ctx); locErr == nil && res.FinalURL != "" && loc != res.FinalURL {
		if err := r.deps.Page.Navigate(ctx, res.FinalURL); err != nil {
			return fmt.Errorf("returning to resolved page %s: %w", res.FinalURL, err)
		}
	}
	return nil
}

// prepareLetter captures the posting, drafts the summary and cover letter,
// and holds the run at the approval gate. Rejecting with feedback redrafts;
// rejecting with a blank reply aborts.
func (r *Runner) prepareLetter(ctx context.Context) error {
	if r.deps.Capturer == nil || r.deps.Drafter == nil {
		return nil
	}

	job, err := r.deps.Capturer.Capture(ctx, r.deps.Page)
	if err != nil {
		r.logger.Warn("Job page capture failed; drafting from the URL alone.", zap.Error(err))
		job = &schemas.JobPosting{URL: r.rec.ResolvedURL}
	} else {
		_ = r.deps.Store.WriteJobPage(job)
	}

	notes := ""
	for {
		jobText := job.Text()
		if notes != "" {
			jobText += "\n\nREVISION NOTES FROM THE CANDIDATE:\n" + notes
		}
		summary, letter, err := r.deps.Drafter.DraftLetter(ctx, job.Title, job.Company, jobText, r.deps.Profile)
		if err != nil {
			return fmt.Errorf("drafting cover letter: %w", err)
		}
		_ = r.deps.Store.WriteJobSummary(summary)

		prompt := fmt.Sprintf(
			"=== JOB / COMPANY SUMMARY ===\n%s\n\n=== PROPOSED COVER LETTER ===\n%s\n\nApprove this cover letter and proceed to filling the form?",
			summary, letter)
		approved, err := r.deps.Asker.Confirm(ctx, prompt)
		if err != nil {
			return fmt.Errorf("awaiting letter approval: %w", err)
		}
		if approved {
			r.deps.Planner.SetCoverLetter(letter)
			_ = r.deps.Store.WriteCoverLetter(letter)
			return nil
		}

		notes, err = r.deps.Asker.AskFreeText(ctx,
			"What should change in the next draft? (leave blank to abort the run)")
		if err != nil {
			return fmt.Errorf("collecting letter feedback: %w", err)
		}
		if strings.TrimSpace(notes) == "" {
			return fmt.Errorf("cover letter rejected: %w", ErrAborted)
		}
		r.logger.Info("Redrafting letter with candidate feedback.")
	}
}

// discover runs the scan and harvest stages. Zero fields is fatal here even
// though the scanner tolerates it: there is nothing to apply to.
func (r *Runner) discover(ctx context.Context) ([]schemas.FieldDescriptor, error) {
	r.transition(schemas.StateScanning)
	fields, err := r.deps.Scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	r.rec.FieldsFound = len(fields)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no form controls on %s", form.ErrScanFailed, r.rec.ResolvedURL)
	}
	r.logger.Info("Form controls discovered.", zap.Int("fields", len(fields)))

	r.transition(schemas.StateHarvesting)
	for i := range fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := &fields[i]
		if d.Kind != schemas.WidgetSyntheticCombobox {
			continue
		}
		opts, err := r.deps.Harvester.OpenAndHarvest(ctx, d)
		if err != nil {
			d.HarvestFailed = true
			r.logger.Warn("Combobox options unreadable; the question falls to the user.",
				zap.String("field", d.DisplayName()), zap.Error(err))
			continue
		}
		d.Options = form.MergeOptions(d.Options, opts)
		r.logger.Debug("Combobox harvested.",
			zap.String("field", d.DisplayName()), zap.Int("options", len(d.Options)))
	}
	return fields, nil
}

// bindAll writes the plan into the page, one decision per plan key, and
// records every attempt. Failures are isolated; the recheck pass decides
// whether they matter.
func (r *Runner) bindAll(ctx context.Context, fields []schemas.FieldDescriptor, groups map[string][]*schemas.FieldDescriptor, plan map[string]schemas.PlannedValue) map[string]bool {
	bound := make(map[string]bool)
	seen := make(map[string]bool)
	for i := range fields {
		if ctx.Err() != nil {
			return bound
		}
		d := &fields[i]
		key := d.PlanKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		pv, ok := plan[key]
		if !ok {
			continue
		}

		var err error
		if members := groups[key]; len(members) > 0 {
			err = r.deps.Binder.BindGroup(ctx, members, pv)
		} else {
			err = r.deps.Binder.Bind(ctx, d, pv)
		}

		rec := schemas.AnswerRecord{
			Field:      form.QuestionFor(d, groups[key]),
			Key:        d.CanonicalKey,
			Group:      d.GroupID,
			Value:      pv.Text,
			Values:     pv.Values,
			Provenance: pv.Source,
			Bound:      err == nil,
		}
		if pv.Checked && pv.Text == "" && len(pv.Values) == 0 {
			rec.Value = "checked"
		}
		if err != nil {
			rec.Failure = err.Error()
			r.logger.Warn("Field binding failed.", zap.String("field", rec.Field), zap.Error(err))
		} else {
			bound[key] = true
		}
		r.answers = append(r.answers, rec)
	}
	return bound
}

// recheck re-scans once and routes still-empty required questions back to the
// user. A single pass: anything unresolved after it is reported, not retried.
func (r *Runner) recheck(ctx context.Context, bound map[string]bool) error {
	r.transition(schemas.StateRecheckingRequired)

	fresh, err := r.deps.Scanner.Scan(ctx)
	if err != nil {
		// The submit gate and the evidence screenshot still protect the user.
		r.logger.Warn("Recheck scan failed; skipping the required-field recheck.", zap.Error(err))
		return nil
	}

	remaining := requiredRemaining(fresh, bound)
	if len(remaining) == 0 {
		r.logger.Info("All required fields hold values.")
		return nil
	}
	r.logger.Info("Required fields still blank after binding.", zap.Int("fields", len(remaining)))

	r.transition(schemas.StateNeedsUserInput)
	reask, err := r.deps.Planner.Reask(ctx, remaining)
	if err != nil {
		return fmt.Errorf("re-asking required fields: %w", err)
	}

	groups := form.GroupMembers(remaining)
	rebound := r.bindAll(ctx, remaining, groups, reask)
	for k, ok := range rebound {
		if ok {
			bound[k] = true
		}
	}

	seen := make(map[string]bool)
	for i := range remaining {
		d := &remaining[i]
		key := d.PlanKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		pv, planned := reask[key]
		switch {
		case !planned || pv.IsZero():
			r.noteUnresolved(d, groups[key], "", "no answer provided")
		case !rebound[key]:
			r.noteUnresolved(d, groups[key], describeValue(pv), "binding failed")
		}
	}
	if n := len(r.unresolved); n > 0 {
		r.logger.Warn("Required fields remain unresolved.", zap.Int("fields", n))
	}
	return nil
}

func (r *Runner) noteUnresolved(d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor, attempt, reason string) {
	r.unresolved = append(r.unresolved, schemas.UnresolvedField{
		Field:   form.QuestionFor(d, group),
		Group:   d.GroupID,
		Attempt: attempt,
		Reason:  reason,
	})
	r.rec.Unresolved = len(r.unresolved)
}

// submit is the last gate. Declining keeps everything filled in the browser
// and aborts; confirming clicks the trigger and captures evidence either way.
func (r *Runner) submit(ctx context.Context) error {
	r.transition(schemas.StateSubmitting)

	approved, err := r.deps.Asker.Confirm(ctx, "Ready to submit the application?")
	if err != nil {
		return fmt.Errorf("awaiting submit approval: %w", err)
	}
	if !approved {
		return fmt.Errorf("submission declined: %w", ErrAborted)
	}

	r.snapshot(ctx, "before_submit")

	trigger, err := r.deps.Submitter.Submit(ctx)
	if err != nil {
		r.logger.Warn("No submit control found; saving the evidence screenshot anyway.", zap.Error(err))
	} else {
		r.logger.Info("Submit trigger clicked.", zap.String("trigger", trigger))
	}

	if err := sleepCtx(ctx, postSubmitSettle); err != nil {
		return err
	}
	r.snapshot(ctx, "after_submit")

	if r.deps.Submitter.DetectSuccess(ctx) {
		r.rec.Submission = schemas.SubmissionConfirmed
		r.logger.Info("Submission confirmed by page text.")
	} else {
		r.rec.Submission = schemas.SubmissionUnknown
		r.logger.Info("Could not confirm success; check the after_submit screenshot.")
	}
	return nil
}

func (r *Runner) snapshot(ctx context.Context, label string) {
	png, err := r.deps.Page.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Screenshot failed.", zap.String("label", label), zap.Error(err))
		return
	}
	r.deps.Store.SaveScreenshot(label, png)
}

func (r *Runner) transition(to schemas.RunState) {
	if to == r.state {
		return
	}
	r.logger.Info("Run state changed.",
		zap.String("from", string(r.state)), zap.String("to", string(to)))
	r.state = to
	r.rec.State = to
}

// warnPriorRuns surfaces earlier attempts against the same posting.
func (r *Runner) warnPriorRuns(ctx context.Context, url string) {
	if r.deps.Ledger == nil {
		return
	}
	prior, err := r.deps.Ledger.ByURL(ctx, url)
	if err != nil || len(prior) == 0 {
		return
	}
	r.logger.Warn("This posting was attempted before.",
		zap.Int("prior_runs", len(prior)),
		zap.String("last_state", string(prior[0].State)),
		zap.Time("last_attempt", prior[0].StartedAt))
}

// finalize flushes the record, the answers document and the ledger row. Runs
// the same way for completed, failed and aborted runs.
func (r *Runner) finalize(ctx context.Context) {
	r.rec.FinishedAt = time.Now().UTC()

	docURL := r.rec.ResolvedURL
	if docURL == "" {
		docURL = r.rec.URL
	}
	doc := &schemas.AnswersDocument{
		RunID:     r.rec.ID,
		URL:       docURL,
		CreatedAt: r.rec.FinishedAt,
		Answers:   r.answers,
		Skipped:   r.skips(),
	}
	if err := r.deps.Store.Finalize(r.rec, doc, r.unresolved); err != nil {
		r.logger.Warn("Artifact finalize failed.", zap.Error(err))
	}
	if r.deps.Ledger != nil {
		if err := r.deps.Ledger.Record(ctx, r.rec); err != nil {
			r.logger.Warn("Run ledger write failed.", zap.Error(err))
		}
	}
}

// skips merges the planner's and the batch answerer's skip records, deduped.
func (r *Runner) skips() []schemas.SkippedField {
	var all []schemas.SkippedField
	all = append(all, r.deps.Planner.Skips()...)
	if r.deps.Drafter != nil {
		all = append(all, r.deps.Drafter.Skips()...)
	}
	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, s := range all {
		k := s.Field + "\x00" + s.Reason
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// requiredRemaining picks, from a fresh scan, the required questions that
// still hold no value. Synthetic comboboxes and file inputs whose bind
// reported success are trusted; their state cannot be read back reliably.
func requiredRemaining(fresh []schemas.FieldDescriptor, bound map[string]bool) []schemas.FieldDescriptor {
	groups := form.GroupMembers(fresh)
	seen := make(map[string]bool)
	var out []schemas.FieldDescriptor
	for i := range fresh {
		d := &fresh[i]
		key := d.PlanKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		members := groups[key]
		if !requiredQuestion(d, members) {
			continue
		}
		if form.AnsweredOnPage(d, members) {
			continue
		}
		if bound[key] && !readableBack(d) {
			continue
		}

		if len(members) > 0 {
			for _, m := range members {
				out = append(out, *m)
			}
		} else {
			out = append(out, *d)
		}
	}
	return out
}

func requiredQuestion(d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor) bool {
	if d.Required {
		return true
	}
	for _, m := range group {
		if m.Required {
			return true
		}
	}
	return false
}

// readableBack reports whether a widget's bound value shows up in a re-scan.
func readableBack(d *schemas.FieldDescriptor) bool {
	switch d.Kind {
	case schemas.WidgetSyntheticCombobox, schemas.WidgetFileUpload:
		return false
	}
	return true
}

// formatPlan renders the review block shown at the fill approval gate.
func formatPlan(fields []schemas.FieldDescriptor, groups map[string][]*schemas.FieldDescriptor, plan map[string]schemas.PlannedValue) string {
	var sb strings.Builder
	sb.WriteString("Planned answers:\n")
	seen := make(map[string]bool)
	n := 0
	for i := range fields {
		d := &fields[i]
		key := d.PlanKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		pv, ok := plan[key]
		if !ok {
			continue
		}
		n++
		fmt.Fprintf(&sb, "  - %s [%s]: %s\n", form.QuestionFor(d, groups[key]), pv.Source, describeValue(pv))
	}
	if n == 0 {
		sb.WriteString("  (nothing to fill)\n")
	}
	return sb.String()
}

// describeValue renders a planned value for review output, collapsed to one
// line and truncated so a pasted cover letter stays readable.
func describeValue(pv schemas.PlannedValue) string {
	var shown string
	switch {
	case len(pv.Values) > 0:
		shown = strings.Join(pv.Values, ", ")
	case pv.Text != "":
		shown = pv.Text
	case pv.Checked:
		shown = "checked"
	default:
		shown = "(empty)"
	}
	shown = strings.Join(strings.Fields(shown), " ")
	if runes := []rune(shown); len(runes) > 120 {
		shown = string(runes[:120]) + "…"
	}
	return shown
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
