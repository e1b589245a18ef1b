// File: internal/form/scanner.go
package form

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

// scanJS discovers every fillable control reachable from one execution root,
// tagging each with a durable handle. Two passes per document: native form
// elements first, then non-native ARIA dropdown widgets. Native tags matching
// the ARIA selectors are left to the first pass so an input[role=combobox]
// stays a plain text field.
const scanJS = `
    const fields = [];
    const skipTypes = { hidden: 1, submit: 1, button: 1, reset: 1, image: 1 };
    const record = (el, doc, synthetic) => ({
        handle: tagHandle(el),
        tag: el.tagName.toLowerCase(),
        type: (el.getAttribute('type') || '').toLowerCase(),
        role: (el.getAttribute('role') || '').toLowerCase(),
        name: el.getAttribute('name') || '',
        label: labelTextFor(el, doc),
        aria: el.getAttribute('aria-label') || '',
        placeholder: el.getAttribute('placeholder') || '',
        requiredAttr: el.hasAttribute('required'),
        ariaRequired: el.getAttribute('aria-required') || '',
        multiple: false,
        options: [],
        group: '',
        value: '',
        checked: false,
        synthetic: synthetic,
    });
    walkDocs((doc) => {
        let natives = [];
        try { natives = doc.querySelectorAll('input, select, textarea'); } catch (e) { return; }
        for (const el of natives) {
            const tag = el.tagName.toLowerCase();
            const type = (el.getAttribute('type') || '').toLowerCase();
            if (tag === 'input' && skipTypes[type]) continue;
            if (el.disabled) continue;
            const isFile = tag === 'input' && type === 'file';
            if (!isFile && !visible(el)) continue;
            const rec = record(el, doc, false);
            if (tag === 'select') {
                rec.multiple = !!el.multiple;
                for (const opt of el.options) {
                    const lab = textOf(opt) || opt.value;
                    rec.options.push({ value: opt.value, label: lab });
                }
                rec.value = el.value || '';
            } else if (tag === 'textarea') {
                rec.value = el.value || '';
            } else if (type === 'checkbox' || type === 'radio') {
                rec.group = rec.name;
                rec.checked = !!el.checked;
                rec.value = el.value || '';
            } else if (!isFile) {
                rec.value = el.value || '';
                const listId = el.getAttribute('list');
                if (listId) {
                    const dl = doc.getElementById(listId);
                    if (dl) {
                        for (const opt of dl.querySelectorAll('option')) {
                            const v = opt.getAttribute('value') || textOf(opt);
                            if (v) rec.options.push({ value: v, label: textOf(opt) || v });
                        }
                    }
                }
            }
            fields.push(rec);
        }
        let widgets = [];
        try { widgets = doc.querySelectorAll('[role="combobox"], [aria-haspopup="listbox"]'); } catch (e) { return; }
        for (const el of widgets) {
            const tag = el.tagName.toLowerCase();
            if (tag === 'input' || tag === 'select' || tag === 'textarea' || tag === 'option') continue;
            if (el.getAttribute('aria-disabled') === 'true') continue;
            if (!visible(el)) continue;
            const rec = record(el, doc, true);
            rec.value = ('value' in el) ? (el.value || '') : '';
            fields.push(rec);
        }
    });
    return fields;
`

// rawField is the wire shape produced by scanJS for one control.
type rawField struct {
	Handle       string           `json:"handle"`
	Tag          string           `json:"tag"`
	Type         string           `json:"type"`
	Role         string           `json:"role"`
	Name         string           `json:"name"`
	Label        string           `json:"label"`
	Aria         string           `json:"aria"`
	Placeholder  string           `json:"placeholder"`
	RequiredAttr bool             `json:"requiredAttr"`
	AriaRequired string           `json:"ariaRequired"`
	Multiple     bool             `json:"multiple"`
	Options      []schemas.Option `json:"options"`
	Group        string           `json:"group"`
	Value        string           `json:"value"`
	Checked      bool             `json:"checked"`
	Synthetic    bool             `json:"synthetic"`
}

// Scanner discovers the fillable controls of the current page and normalizes
// them into descriptors. Scan is re-invocable: a second pass after the page
// mutates reflects live state and reuses handles assigned earlier.
type Scanner struct {
	page     Page
	classify *Classifier
	required *RequiredDetector
	attempts int
	settle   time.Duration
	logger   *zap.Logger
}

func NewScanner(page Page, cfg config.FormConfig, logger *zap.Logger) *Scanner {
	attempts := cfg.ScanAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Scanner{
		page:     page,
		classify: NewClassifier(nil),
		required: NewRequiredDetector(cfg.RequiredMarkers),
		attempts: attempts,
		settle:   cfg.ScanSettle,
		logger:   logger.Named("scanner"),
	}
}

// Scan walks every execution root and returns a descriptor per visible,
// enabled control. Hidden file inputs are kept: upload inputs are routinely
// hidden behind styled buttons and are still bindable. An empty page is not
// an error; callers decide whether zero fields is fatal. The scan retries
// with a settle delay while the page yields nothing, since JS-rendered forms
// often appear well after document load.
func (s *Scanner) Scan(ctx context.Context) ([]schemas.FieldDescriptor, error) {
	var fields []schemas.FieldDescriptor
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var err error
		fields, err = s.scanOnce(ctx)
		if err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			s.logger.Debug("Scan complete",
				zap.Int("attempt", attempt),
				zap.Int("fields", len(fields)))
			return fields, nil
		}
		if attempt < s.attempts {
			s.logger.Debug("No controls discovered yet, waiting for the page to settle",
				zap.Int("attempt", attempt),
				zap.Duration("settle", s.settle))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.settle):
			}
		}
	}
	return fields, nil
}

func (s *Scanner) scanOnce(ctx context.Context) ([]schemas.FieldDescriptor, error) {
	roots, err := s.page.ExecutionRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerating execution roots: %v", ErrScanFailed, err)
	}
	if len(roots) > 1 {
		// Target enumeration order is not stable; descriptor order should be.
		sort.Strings(roots[1:])
	}

	script := wrapJS(scanJS)
	var out []schemas.FieldDescriptor
	for i, root := range roots {
		var raws []rawField
		if err := s.page.Eval(ctx, root, script, &raws); err != nil {
			if i == 0 {
				return nil, fmt.Errorf("%w: evaluating in top frame: %v", ErrScanFailed, err)
			}
			// An iframe can detach or navigate mid-scan; its controls are
			// simply absent from this pass.
			s.logger.Warn("Skipping unreachable frame", zap.String("frame", root), zap.Error(err))
			continue
		}
		for _, rf := range raws {
			out = append(out, s.describe(root, rf))
		}
	}
	return out, nil
}

func (s *Scanner) describe(root string, rf rawField) schemas.FieldDescriptor {
	attrs := make(map[string]string, 2)
	if rf.RequiredAttr {
		attrs["required"] = ""
	}
	if rf.AriaRequired != "" {
		attrs["aria-required"] = rf.AriaRequired
	}
	return schemas.FieldDescriptor{
		FrameID:         root,
		Handle:          rf.Handle,
		Kind:            widgetKind(rf),
		LabelText:       rf.Label,
		PlaceholderText: rf.Placeholder,
		NameAttribute:   rf.Name,
		AriaText:        rf.Aria,
		CanonicalKey:    s.classify.Classify(rf.Label, rf.Placeholder, rf.Name, rf.Aria),
		Required:        s.required.IsRequired(attrs, rf.Label),
		Options:         rf.Options,
		AllowsMultiple:  rf.Multiple,
		GroupID:         rf.Group,
		CurrentValue:    rf.Value,
		Checked:         rf.Checked,
	}
}

// widgetKind maps a raw scan record onto the binder dispatch taxonomy. A text
// input backed by a datalist behaves as a constrained choice, so it is
// reported as a native select.
func widgetKind(rf rawField) schemas.WidgetKind {
	if rf.Synthetic {
		return schemas.WidgetSyntheticCombobox
	}
	switch rf.Tag {
	case "select":
		return schemas.WidgetNativeSelect
	case "textarea":
		return schemas.WidgetTextArea
	}
	switch rf.Type {
	case "checkbox":
		return schemas.WidgetCheckbox
	case "radio":
		return schemas.WidgetRadio
	case "file":
		return schemas.WidgetFileUpload
	}
	if len(rf.Options) > 0 {
		return schemas.WidgetNativeSelect
	}
	return schemas.WidgetTextInput
}
