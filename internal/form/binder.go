// File: internal/form/binder.go
package form

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

// typewriteMax is the longest value bound with per-character typing; anything
// longer (cover letters, essay answers) is committed in one write so a run
// does not stall for minutes on a textarea.
const typewriteMax = 120

// Binder pushes planned values into live controls. All writes go through the
// element prototype's native value setter with input/change events fired, so
// framework-controlled inputs observe the change instead of reverting it on
// the next render.
type Binder struct {
	page      Page
	harvester *Harvester
	typing    time.Duration
	logger    *zap.Logger
}

func NewBinder(page Page, harvester *Harvester, cfg config.FormConfig, logger *zap.Logger) *Binder {
	return &Binder{
		page:      page,
		harvester: harvester,
		typing:    cfg.TypingDelay,
		logger:    logger.Named("binder"),
	}
}

// Bind dispatches one planned value by widget kind. Rebinding the same
// descriptor with the same value is safe: writes reset state first and
// toggles fire only on mismatch.
func (b *Binder) Bind(ctx context.Context, d *schemas.FieldDescriptor, pv schemas.PlannedValue) error {
	switch d.Kind {
	case schemas.WidgetTextInput, schemas.WidgetTextArea:
		return b.bindText(ctx, d, pv.Text)
	case schemas.WidgetNativeSelect:
		return b.bindSelect(ctx, d, pv)
	case schemas.WidgetSyntheticCombobox:
		return b.bindCombobox(ctx, d, pv)
	case schemas.WidgetCheckbox:
		return b.bindToggle(ctx, d, pv.Checked)
	case schemas.WidgetRadio:
		return b.bindRadioMember(ctx, d)
	case schemas.WidgetFileUpload:
		return b.bindFile(ctx, d, pv.Text)
	}
	return fieldErr(d.DisplayName(), pv.Text, ErrBindFailed)
}

// BindGroup applies one decision to a whole radio/checkbox group. For radios
// exactly one member is clicked; for checkboxes every chosen member is
// switched on and the rest are left untouched.
func (b *Binder) BindGroup(ctx context.Context, group []*schemas.FieldDescriptor, pv schemas.PlannedValue) error {
	if len(group) == 0 {
		return nil
	}
	if group[0].Kind == schemas.WidgetCheckbox {
		for _, member := range group {
			if !memberMatches(member, pv.Values) {
				continue
			}
			if err := b.bindToggle(ctx, member, true); err != nil {
				return err
			}
		}
		return nil
	}
	for _, member := range group {
		if memberMatches(member, pv.Values) {
			return b.bindRadioMember(ctx, member)
		}
	}
	return fieldErr(group[0].DisplayName(), strings.Join(pv.Values, ", "), ErrBindFailed)
}

// memberMatches reports whether a group member is one of the chosen values,
// by value attribute first and label text second. Labels matter because
// valueless checkboxes all share the browser default value "on".
func memberMatches(member *schemas.FieldDescriptor, values []string) bool {
	for _, v := range values {
		if v == "" {
			continue
		}
		if v == member.CurrentValue {
			return true
		}
		if strings.EqualFold(v, member.LabelText) || strings.EqualFold(v, member.AriaText) {
			return true
		}
	}
	return false
}

func (b *Binder) bindText(ctx context.Context, d *schemas.FieldDescriptor, text string) error {
	delay := int(b.typing.Milliseconds())
	var script string
	var ok bool
	var err error

	if delay > 0 && len(text) <= typewriteMax {
		script = wrapAsyncJS(`
    const el = byHandle(` + jsString(d.Handle) + `);
    if (!el) return false;
    try { el.scrollIntoView({ block: 'center', inline: 'nearest' }); } catch (e) {}
    try { if (el.focus) el.focus(); } catch (e) {}
    const text = ` + jsString(text) + `;
    setValueRaw(el, '');
    fire(el, 'input');
    for (let i = 0; i < text.length; i++) {
        setValueRaw(el, text.slice(0, i + 1));
        fire(el, 'input');
        await new Promise((r) => setTimeout(r, ` + strconv.Itoa(delay) + `));
    }
    fire(el, 'change');
    try { if (el.blur) el.blur(); } catch (e) {}
    return el.value === text || (text !== '' && el.value !== '');
`)
		err = b.page.EvalAsync(ctx, d.FrameID, script, &ok)
	} else {
		script = wrapJS(`
    const el = byHandle(` + jsString(d.Handle) + `);
    if (!el) return false;
    try { if (el.focus) el.focus(); } catch (e) {}
    const text = ` + jsString(text) + `;
    setNativeValue(el, text);
    try { if (el.blur) el.blur(); } catch (e) {}
    return el.value === text || (text !== '' && el.value !== '');
`)
		err = b.page.Eval(ctx, d.FrameID, script, &ok)
	}
	if err != nil {
		b.logger.Warn("Text bind script failed", zap.String("field", d.DisplayName()), zap.Error(err))
		return fieldErr(d.DisplayName(), text, ErrBindFailed)
	}
	if !ok {
		return fieldErr(d.DisplayName(), text, ErrBindFailed)
	}
	return nil
}

func (b *Binder) bindSelect(ctx context.Context, d *schemas.FieldDescriptor, pv schemas.PlannedValue) error {
	wanted := pv.Values
	if len(wanted) == 0 && pv.Text != "" {
		wanted = []string{pv.Text}
	}
	if len(wanted) == 0 {
		return nil
	}

	script := wrapJS(`
    const el = byHandle(` + jsString(d.Handle) + `);
    if (!el) return false;
    const wanted = ` + jsStringArray(wanted) + `;
    if (el.tagName.toLowerCase() !== 'select') {
        const v = wanted[0] || '';
        setNativeValue(el, v);
        return el.value === v;
    }
    const lc = wanted.map((w) => String(w).toLowerCase());
    const matchers = [
        (opt) => wanted.indexOf(opt.value) !== -1,
        (opt) => lc.indexOf(textOf(opt).toLowerCase()) !== -1 || lc.indexOf((opt.value || '').toLowerCase()) !== -1,
    ];
    for (const match of matchers) {
        let hit = false;
        for (const opt of el.options) {
            if (!match(opt)) continue;
            if (el.multiple) {
                opt.selected = true;
                hit = true;
            } else {
                setValueRaw(el, opt.value);
                hit = true;
                break;
            }
        }
        if (hit) {
            fire(el, 'input');
            fire(el, 'change');
            return true;
        }
    }
    return false;
`)

	var ok bool
	if err := b.page.Eval(ctx, d.FrameID, script, &ok); err != nil {
		b.logger.Warn("Select bind script failed", zap.String("field", d.DisplayName()), zap.Error(err))
		return fieldErr(d.DisplayName(), strings.Join(wanted, ", "), ErrBindFailed)
	}
	if !ok {
		return fieldErr(d.DisplayName(), strings.Join(wanted, ", "), ErrBindFailed)
	}
	return nil
}

// bindCombobox resolves planned values back to harvested options and delegates
// to the harvester's click-only selection. A value with no harvested match is
// still attempted as a live-menu match, never typed.
func (b *Binder) bindCombobox(ctx context.Context, d *schemas.FieldDescriptor, pv schemas.PlannedValue) error {
	values := pv.Values
	if len(values) == 0 && pv.Text != "" {
		values = []string{pv.Text}
	}
	if len(values) == 0 {
		return nil
	}
	picks := make([]schemas.Option, 0, len(values))
	for _, v := range values {
		if opt, ok := d.FindOption(v); ok {
			picks = append(picks, opt)
			continue
		}
		picks = append(picks, schemas.Option{Value: v, Label: v})
	}
	return b.harvester.Select(ctx, d, picks)
}

func (b *Binder) bindToggle(ctx context.Context, d *schemas.FieldDescriptor, want bool) error {
	script := wrapJS(`
    const el = byHandle(` + jsString(d.Handle) + `);
    if (!el) return false;
    const want = ` + strconv.FormatBool(want) + `;
    if (!!el.checked !== want) clickEl(el);
    if (!!el.checked !== want) {
        const win = (el.ownerDocument && el.ownerDocument.defaultView) || window;
        const desc = Object.getOwnPropertyDescriptor(win.HTMLInputElement.prototype, 'checked');
        if (desc && desc.set) { desc.set.call(el, want); } else { el.checked = want; }
        fire(el, 'input');
        fire(el, 'change');
    }
    return !!el.checked === want;
`)

	var ok bool
	if err := b.page.Eval(ctx, d.FrameID, script, &ok); err != nil {
		b.logger.Warn("Toggle bind script failed", zap.String("field", d.DisplayName()), zap.Error(err))
		return fieldErr(d.DisplayName(), strconv.FormatBool(want), ErrBindFailed)
	}
	if !ok {
		return fieldErr(d.DisplayName(), strconv.FormatBool(want), ErrBindFailed)
	}
	return nil
}

func (b *Binder) bindRadioMember(ctx context.Context, d *schemas.FieldDescriptor) error {
	script := wrapJS(`
    const el = byHandle(` + jsString(d.Handle) + `);
    if (!el) return false;
    if (!el.checked) clickEl(el);
    if (!el.checked) {
        const win = (el.ownerDocument && el.ownerDocument.defaultView) || window;
        const desc = Object.getOwnPropertyDescriptor(win.HTMLInputElement.prototype, 'checked');
        if (desc && desc.set) { desc.set.call(el, true); } else { el.checked = true; }
        fire(el, 'input');
        fire(el, 'change');
    }
    return !!el.checked;
`)

	var ok bool
	if err := b.page.Eval(ctx, d.FrameID, script, &ok); err != nil {
		b.logger.Warn("Radio bind script failed", zap.String("field", d.DisplayName()), zap.Error(err))
		return fieldErr(d.DisplayName(), d.CurrentValue, ErrBindFailed)
	}
	if !ok {
		return fieldErr(d.DisplayName(), d.CurrentValue, ErrBindFailed)
	}
	return nil
}

func (b *Binder) bindFile(ctx context.Context, d *schemas.FieldDescriptor, path string) error {
	if path == "" {
		return fieldErr(d.DisplayName(), "", ErrBindFailed)
	}
	if err := b.page.SetFiles(ctx, d.FrameID, handleLocator(d.Handle), []string{path}); err != nil {
		b.logger.Warn("File attach failed",
			zap.String("field", d.DisplayName()),
			zap.String("path", path),
			zap.Error(err))
		return fieldErr(d.DisplayName(), path, ErrBindFailed)
	}
	return nil
}

// jsStringArray renders values as a JavaScript array literal of strings.
func jsStringArray(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = jsString(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
