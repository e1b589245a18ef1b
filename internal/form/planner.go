// File: internal/form/planner.go
package form

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/llm"
)

// Planner resolves one value per logical question. Resolution order: candidate
// profile, AI inference over the résumé, then the human. Choice questions are
// hard-restricted to the harvested option set regardless of where a candidate
// answer came from; anything outside it is rejected and the human picks
// instead.
type Planner struct {
	profile     *schemas.ContactProfile
	inferrer    *llm.Inferrer
	asker       schemas.Asker
	resumePath  string
	coverLetter string
	logger      *zap.Logger

	skipped []schemas.SkippedField
}

func NewPlanner(profile *schemas.ContactProfile, inferrer *llm.Inferrer, asker schemas.Asker, resumePath, coverLetter string, logger *zap.Logger) *Planner {
	return &Planner{
		profile:     profile,
		inferrer:    inferrer,
		asker:       asker,
		resumePath:  resumePath,
		coverLetter: coverLetter,
		logger:      logger.Named("planner"),
	}
}

// Plan walks the descriptors in discovery order and produces a decision per
// plan key. Grouped radio/checkbox controls yield a single decision for the
// whole group. Optional unclassified text fields are deliberately left
// unplanned. The returned skip list carries every question the planner
// declined on purpose.
func (p *Planner) Plan(ctx context.Context, fields []schemas.FieldDescriptor) (map[string]schemas.PlannedValue, []schemas.SkippedField, error) {
	p.skipped = nil
	plan := make(map[string]schemas.PlannedValue)
	groups := GroupMembers(fields)

	p.seedBatch(ctx, fields, groups, plan)

	done := make(map[string]bool)
	for i := range fields {
		d := &fields[i]
		key := d.PlanKey()
		if done[key] {
			continue
		}
		done[key] = true

		if _, ok := plan[key]; ok {
			continue
		}

		pv, err := p.planOne(ctx, d, groups[key])
		if err != nil {
			return nil, nil, err
		}
		if !pv.IsZero() {
			plan[key] = pv
		}
	}
	return plan, p.skipped, nil
}

// Reask is the recheck path: every given descriptor goes straight to the
// human, skipping profile and AI sources that already had their chance.
func (p *Planner) Reask(ctx context.Context, fields []schemas.FieldDescriptor) (map[string]schemas.PlannedValue, error) {
	plan := make(map[string]schemas.PlannedValue)
	groups := GroupMembers(fields)
	done := make(map[string]bool)
	for i := range fields {
		d := &fields[i]
		key := d.PlanKey()
		if done[key] {
			continue
		}
		done[key] = true

		pv, err := p.askUser(ctx, d, groups[key], true)
		if err != nil {
			return nil, err
		}
		if !pv.IsZero() {
			plan[key] = pv
		}
	}
	return plan, nil
}

// Skips returns the planner's own skip records; the inferrer keeps its own.
func (p *Planner) Skips() []schemas.SkippedField {
	return p.skipped
}

// SetCoverLetter installs the approved letter text. The letter is drafted
// after the planner is constructed, once the job page has been read.
func (p *Planner) SetCoverLetter(text string) {
	p.coverLetter = text
}

func (p *Planner) planOne(ctx context.Context, d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor) (schemas.PlannedValue, error) {
	// Page-provided state wins: a prefilled field or a pre-selected group is
	// left alone rather than overwritten or re-asked.
	if AnsweredOnPage(d, group) {
		p.skip(QuestionFor(d, group), "already answered on the page")
		return schemas.PlannedValue{}, nil
	}

	switch d.Kind {
	case schemas.WidgetFileUpload:
		return p.planUpload(d)
	case schemas.WidgetTextInput, schemas.WidgetTextArea:
		if d.CanonicalKey == KeyCoverLetter && p.coverLetter != "" {
			return schemas.PlannedValue{Text: p.coverLetter, Source: schemas.ProvenanceAIInferred}, nil
		}
	}

	// (a) profile attribute by canonical key.
	if d.CanonicalKey != "" {
		if v, ok := p.profile.Lookup(d.CanonicalKey); ok {
			if pv, ok := p.acceptCandidate(d, []string{v}, schemas.ProvenanceProfile); ok {
				return pv, nil
			}
			p.logger.Debug("Profile value not offered by widget, continuing",
				zap.String("field", d.DisplayName()),
				zap.String("key", d.CanonicalKey))
		}
	}

	// (b) AI inference, batch answer first, then a per-field call.
	if pv, ok, err := p.infer(ctx, d, group); err != nil {
		return schemas.PlannedValue{}, err
	} else if ok {
		return pv, nil
	}

	// (c) the human, but only where silence would hurt: required fields and
	// choice widgets with no safe default.
	if d.Required || d.IsChoice() {
		return p.askUser(ctx, d, group, false)
	}
	return schemas.PlannedValue{}, nil
}

func (p *Planner) planUpload(d *schemas.FieldDescriptor) (schemas.PlannedValue, error) {
	if p.resumePath == "" {
		p.skip(d.DisplayName(), "no resume file configured")
		return schemas.PlannedValue{}, nil
	}
	return schemas.PlannedValue{Text: p.resumePath, Source: schemas.ProvenanceProfile}, nil
}

// infer consults the batch answer cache, then a single-field model call. The
// result is only a candidate; acceptCandidate enforces the option restriction.
func (p *Planner) infer(ctx context.Context, d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor) (schemas.PlannedValue, bool, error) {
	key := d.PlanKey()
	question, options := questionAndOptions(d, group)

	if reason, skippedEarlier := p.inferrer.SkipReason(key); skippedEarlier {
		p.logger.Debug("Batch pass skipped question", zap.String("field", question), zap.String("reason", reason))
		return schemas.PlannedValue{}, false, nil
	}
	if vals, ok := p.inferrer.CachedAnswer(key); ok && len(vals) > 0 {
		if pv, accepted := p.acceptCandidate(d, vals, schemas.ProvenanceAIInferred); accepted {
			return pv, true, nil
		}
		p.logger.Debug("Batch answer rejected by option restriction", zap.String("field", question))
	}

	answer, ok, err := p.inferrer.InferField(ctx, key, question, options)
	if err != nil {
		// Inference is best-effort; a flaky model never blocks the run.
		p.logger.Warn("Field inference failed", zap.String("field", question), zap.Error(err))
		return schemas.PlannedValue{}, false, nil
	}
	if !ok {
		return schemas.PlannedValue{}, false, nil
	}
	if pv, accepted := p.acceptCandidate(d, []string{answer}, schemas.ProvenanceAIInferred); accepted {
		return pv, true, nil
	}
	p.logger.Debug("Inferred answer rejected by option restriction",
		zap.String("field", question),
		zap.String("answer", answer))
	return schemas.PlannedValue{}, false, nil
}

// acceptCandidate turns candidate strings into a planned value, enforcing the
// choice restriction: for choice widgets every value must match a known
// option, and values that do not are dropped. ok is false when nothing
// usable remains.
func (p *Planner) acceptCandidate(d *schemas.FieldDescriptor, candidates []string, source schemas.Provenance) (schemas.PlannedValue, bool) {
	if !d.IsChoice() {
		for _, c := range candidates {
			if s := strings.TrimSpace(c); s != "" {
				return schemas.PlannedValue{Text: s, Source: source}, true
			}
		}
		return schemas.PlannedValue{}, false
	}

	if d.Kind == schemas.WidgetCheckbox && d.GroupID == "" {
		// A lone consent-style checkbox has no option vocabulary; only an
		// explicit yes counts.
		for _, c := range candidates {
			if isAffirmative(c) {
				return schemas.PlannedValue{Checked: true, Source: source}, true
			}
		}
		return schemas.PlannedValue{}, false
	}

	var values []string
	for _, c := range candidates {
		if opt, ok := d.FindOption(strings.TrimSpace(c)); ok {
			values = append(values, pickValue(opt))
		}
	}
	if len(values) == 0 {
		return schemas.PlannedValue{}, false
	}
	if !allowsMultiplePicks(d) {
		values = values[:1]
	}
	return schemas.PlannedValue{Values: values, Source: source}, true
}

// askUser routes one question to the human. force widens the net to optional
// fields during the recheck pass.
func (p *Planner) askUser(ctx context.Context, d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor, force bool) (schemas.PlannedValue, error) {
	question, options := questionAndOptions(d, group)

	switch {
	case d.Kind == schemas.WidgetCheckbox && d.GroupID == "":
		if !d.Required && !force {
			return schemas.PlannedValue{}, nil
		}
		yes, err := p.asker.Confirm(ctx, fmt.Sprintf("Check the box %q?", question))
		if err != nil {
			return schemas.PlannedValue{}, fmt.Errorf("asking about %q: %w", question, err)
		}
		return schemas.PlannedValue{Checked: yes, Source: schemas.ProvenanceUserProvided}, nil

	case d.IsChoice() && len(options) > 0:
		if allowsMultiplePicks(d) {
			picks, err := p.asker.AskMultiChoice(ctx, question, options)
			if err != nil {
				return schemas.PlannedValue{}, fmt.Errorf("asking about %q: %w", question, err)
			}
			if len(picks) == 0 {
				p.skip(question, "user skipped")
				return schemas.PlannedValue{}, nil
			}
			values := make([]string, len(picks))
			for i, pick := range picks {
				values[i] = pickValue(pick)
			}
			return schemas.PlannedValue{Values: values, Source: schemas.ProvenanceUserProvided}, nil
		}
		pick, err := p.asker.AskChoice(ctx, question, options)
		if err != nil {
			return schemas.PlannedValue{}, fmt.Errorf("asking about %q: %w", question, err)
		}
		if pick == (schemas.Option{}) {
			p.skip(question, "user skipped")
			return schemas.PlannedValue{}, nil
		}
		return schemas.PlannedValue{Values: []string{pickValue(pick)}, Source: schemas.ProvenanceUserProvided}, nil

	case d.Kind == schemas.WidgetSyntheticCombobox:
		// Harvest came up empty; the human supplies the visible option text
		// and the binder still resolves it by clicking the live menu.
		reply, err := p.asker.AskFreeText(ctx,
			fmt.Sprintf("%s (dropdown options could not be read; type the exact option text as shown)", question))
		if err != nil {
			return schemas.PlannedValue{}, fmt.Errorf("asking about %q: %w", question, err)
		}
		if strings.TrimSpace(reply) == "" {
			p.skip(question, "options unreadable and user skipped")
			return schemas.PlannedValue{}, nil
		}
		return schemas.PlannedValue{Values: []string{strings.TrimSpace(reply)}, Source: schemas.ProvenanceUserProvided}, nil

	default:
		reply, err := p.asker.AskFreeText(ctx, question)
		if err != nil {
			return schemas.PlannedValue{}, fmt.Errorf("asking about %q: %w", question, err)
		}
		if strings.TrimSpace(reply) == "" {
			p.skip(question, "user skipped")
			return schemas.PlannedValue{}, nil
		}
		return schemas.PlannedValue{Text: strings.TrimSpace(reply), Source: schemas.ProvenanceUserProvided}, nil
	}
}

// seedBatch hands every question that will need AI to the one-shot answering
// pass so most per-field calls hit the cache. Failure is logged and ignored.
func (p *Planner) seedBatch(ctx context.Context, fields []schemas.FieldDescriptor, groups map[string][]*schemas.FieldDescriptor, plan map[string]schemas.PlannedValue) {
	var batch []llm.BatchField
	seen := make(map[string]bool)
	for i := range fields {
		d := &fields[i]
		key := d.PlanKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, ok := plan[key]; ok {
			continue
		}
		if d.Kind == schemas.WidgetFileUpload || AnsweredOnPage(d, groups[key]) {
			continue
		}
		if d.CanonicalKey != "" {
			if _, ok := p.profile.Lookup(d.CanonicalKey); ok {
				continue
			}
		}
		question, options := questionAndOptions(d, groups[key])
		batch = append(batch, llm.BatchField{
			ID:       key,
			Question: question,
			Required: d.Required,
			Options:  options,
			Multiple: allowsMultiplePicks(d),
		})
	}
	if len(batch) == 0 {
		return
	}
	if err := p.inferrer.AnswerBatch(ctx, batch); err != nil {
		p.logger.Warn("Batch answer pass failed, falling back to per-field inference", zap.Error(err))
	}
}

func (p *Planner) skip(field, reason string) {
	p.skipped = append(p.skipped, schemas.SkippedField{Field: field, Reason: reason})
	p.logger.Info("Question skipped", zap.String("field", field), zap.String("reason", reason))
}

// GroupMembers indexes grouped radio/checkbox controls by plan key. Pointers
// reference the given slice, so callers can see option merges on the members.
func GroupMembers(fields []schemas.FieldDescriptor) map[string][]*schemas.FieldDescriptor {
	groups := make(map[string][]*schemas.FieldDescriptor)
	for i := range fields {
		d := &fields[i]
		if d.GroupID == "" {
			continue
		}
		if d.Kind != schemas.WidgetRadio && d.Kind != schemas.WidgetCheckbox {
			continue
		}
		key := d.PlanKey()
		groups[key] = append(groups[key], d)
	}
	return groups
}

// questionAndOptions derives the human-readable question and candidate
// options for one plan key. Groups synthesize their option set from the
// member controls.
func questionAndOptions(d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor) (string, []schemas.Option) {
	if len(group) > 1 || (len(group) == 1 && group[0].GroupID != "") {
		return groupQuestion(group), groupOptions(group)
	}
	return d.DisplayName(), d.Options
}

// QuestionFor names the logical question behind a descriptor, using the group
// label when the descriptor is one member of a radio/checkbox group.
func QuestionFor(d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor) string {
	if len(group) > 0 {
		return groupQuestion(group)
	}
	return d.DisplayName()
}

func groupQuestion(group []*schemas.FieldDescriptor) string {
	for _, member := range group {
		for _, s := range []string{member.LabelText, member.AriaText, member.NameAttribute} {
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		}
	}
	return "Choose"
}

// groupOptions builds the vocabulary of a radio/checkbox group. The value
// attribute identifies a member only when it is unique within the group;
// valueless checkboxes all carry the browser default "on", so those fall back
// to their label.
func groupOptions(group []*schemas.FieldDescriptor) []schemas.Option {
	counts := make(map[string]int, len(group))
	for _, member := range group {
		counts[member.CurrentValue]++
	}
	opts := make([]schemas.Option, 0, len(group))
	for _, member := range group {
		value := member.CurrentValue
		if value == "" || counts[value] > 1 {
			value = member.DisplayName()
		}
		opts = append(opts, schemas.Option{Value: value, Label: member.DisplayName()})
	}
	return opts
}

// AnsweredOnPage reports whether the page already holds an answer for this
// plan key: a non-empty current value, a checked lone checkbox, or any checked
// member of a group.
func AnsweredOnPage(d *schemas.FieldDescriptor, group []*schemas.FieldDescriptor) bool {
	if len(group) > 0 {
		for _, member := range group {
			if member.Checked {
				return true
			}
		}
		return false
	}
	switch d.Kind {
	case schemas.WidgetCheckbox, schemas.WidgetRadio:
		return d.Checked
	case schemas.WidgetFileUpload:
		return false
	}
	return strings.TrimSpace(d.CurrentValue) != ""
}

// pickValue prefers the option's value and falls back to its label, matching
// how the binder resolves picks back to live elements.
func pickValue(opt schemas.Option) string {
	if strings.TrimSpace(opt.Value) != "" {
		return opt.Value
	}
	return opt.Label
}

// allowsMultiplePicks reports whether one decision may carry several values.
func allowsMultiplePicks(d *schemas.FieldDescriptor) bool {
	if d.AllowsMultiple {
		return true
	}
	return d.Kind == schemas.WidgetCheckbox && d.GroupID != ""
}

// isAffirmative interprets a yes-ish candidate answer for lone checkboxes.
func isAffirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "checked":
		return true
	}
	return false
}
