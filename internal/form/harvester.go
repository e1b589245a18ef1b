// File: internal/form/harvester.go
package form

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

// jsComboHelpers extends the shared prelude with dropdown mechanics. Option
// nodes are searched across the whole rendered document, not just under the
// control, because most dropdown libraries render their menu into a portal
// near document.body.
const jsComboHelpers = `
    const optionSelectors = [
        '[role="listbox"] [role="option"]',
        '[role="option"]',
        'ul[role="listbox"] li',
        '.Select-menu-outer .Select-option',
        '[class*="menu"] [class*="option"]',
        '[data-value]'
    ];
    const openWidget = (el) => {
        try { el.scrollIntoView({ block: 'center', inline: 'nearest' }); } catch (e) {}
        try { if (el.focus) el.focus(); } catch (e) {}
        const r = el.getBoundingClientRect();
        if ((r.width > 0 && r.height > 0) || el.getClientRects().length > 0) {
            clickEl(el);
        } else if (el.parentElement) {
            clickEl(el.parentElement);
        }
        pressKey(el, 'Enter', 'Enter');
        pressKey(el, 'ArrowDown', 'ArrowDown');
        pressKey(el, ' ', 'Space');
    };
    const closeWidget = (el) => {
        pressKey(el, 'Escape', 'Escape');
        try { if (el.blur) el.blur(); } catch (e) {}
    };
    const optionNodes = () => {
        const nodes = [];
        const taken = new Set();
        walkDocs((doc) => {
            for (const sel of optionSelectors) {
                let found = [];
                try { found = doc.querySelectorAll(sel); } catch (e) { continue; }
                let scanned = 0;
                for (const it of found) {
                    if (scanned >= 200) break;
                    scanned++;
                    if (taken.has(it)) continue;
                    if (!visible(it)) continue;
                    const lab = textOf(it);
                    if (!lab) continue;
                    taken.add(it);
                    nodes.push({
                        el: it,
                        label: lab,
                        value: it.getAttribute('data-value') || it.getAttribute('value') || lab,
                    });
                }
            }
        });
        return nodes;
    };
`

// Harvester opens synthetic dropdown widgets and works with whatever options
// the page actually renders. It never types free text into a widget: picking
// is strictly clicking a live menu entry, so a value the page does not offer
// can never be submitted through it.
type Harvester struct {
	page     Page
	attempts int
	settle   time.Duration
	logger   *zap.Logger
}

func NewHarvester(page Page, cfg config.FormConfig, logger *zap.Logger) *Harvester {
	attempts := cfg.HarvestAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Harvester{
		page:     page,
		attempts: attempts,
		settle:   cfg.HarvestSettle,
		logger:   logger.Named("harvester"),
	}
}

// OpenAndHarvest triggers the widget open, lets the menu render, and scrapes
// the visible option set, de-duplicated by normalized label in render order.
// The menu is dismissed again so consecutive harvests do not read each
// other's leftovers. Zero options after every attempt is ErrHarvestFailed.
func (h *Harvester) OpenAndHarvest(ctx context.Context, d *schemas.FieldDescriptor) ([]schemas.Option, error) {
	openScript := wrapJS(jsComboHelpers + `
    const el = byHandle(` + jsString(d.Handle) + `);
    if (!el) return false;
    openWidget(el);
    return true;
`)
	collectScript := wrapJS(jsComboHelpers + `
    const el = byHandle(` + jsString(d.Handle) + `);
    const nodes = optionNodes();
    const seen = new Set();
    const out = [];
    for (const n of nodes) {
        const key = n.label.toLowerCase();
        if (seen.has(key)) continue;
        seen.add(key);
        out.push({ value: n.value, label: n.label });
        if (out.length >= 200) break;
    }
    if (el) closeWidget(el);
    return out;
`)

	for attempt := 1; attempt <= h.attempts; attempt++ {
		var opened bool
		if err := h.page.Eval(ctx, d.FrameID, openScript, &opened); err != nil {
			h.logger.Warn("Widget open script failed",
				zap.String("field", d.DisplayName()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if !opened {
			h.logger.Warn("Widget vanished before harvest",
				zap.String("field", d.DisplayName()),
				zap.Int("attempt", attempt))
		}

		if err := sleepCtx(ctx, h.settle); err != nil {
			return nil, err
		}

		var opts []schemas.Option
		if err := h.page.Eval(ctx, d.FrameID, collectScript, &opts); err != nil {
			h.logger.Warn("Option collection failed",
				zap.String("field", d.DisplayName()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		if len(opts) > 0 {
			h.logger.Debug("Harvested options",
				zap.String("field", d.DisplayName()),
				zap.Int("count", len(opts)),
				zap.Int("attempt", attempt))
			return opts, nil
		}
	}
	return nil, fieldErr(d.DisplayName(), "", ErrHarvestFailed)
}

// Select picks the given options one at a time, reopening the widget before
// every pick since most menus close on selection. Matching is exact first,
// then case-insensitive, then case-insensitive substring on the label,
// always by clicking the live node.
func (h *Harvester) Select(ctx context.Context, d *schemas.FieldDescriptor, picks []schemas.Option) error {
	for _, pick := range picks {
		if err := h.selectOne(ctx, d, pick); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harvester) selectOne(ctx context.Context, d *schemas.FieldDescriptor, pick schemas.Option) error {
	openScript := wrapJS(jsComboHelpers + `
    const el = byHandle(` + jsString(d.Handle) + `);
    if (!el) return false;
    openWidget(el);
    return true;
`)
	pickScript := wrapJS(jsComboHelpers + `
    const wantValue = ` + jsString(pick.Value) + `;
    const wantLabel = ` + jsString(pick.Label) + `;
    const lcValue = wantValue.toLowerCase();
    const lcLabel = wantLabel.toLowerCase();
    const nodes = optionNodes();
    for (const n of nodes) {
        if ((wantValue && n.value === wantValue) || (wantLabel && n.label === wantLabel)) {
            clickEl(n.el);
            return true;
        }
    }
    for (const n of nodes) {
        if ((lcValue && n.value.toLowerCase() === lcValue) || (lcLabel && n.label.toLowerCase() === lcLabel)) {
            clickEl(n.el);
            return true;
        }
    }
    for (const n of nodes) {
        if (lcLabel && n.label.toLowerCase().indexOf(lcLabel) !== -1) {
            clickEl(n.el);
            return true;
        }
    }
    return false;
`)

	for attempt := 1; attempt <= h.attempts; attempt++ {
		var opened bool
		if err := h.page.Eval(ctx, d.FrameID, openScript, &opened); err != nil {
			h.logger.Warn("Widget open script failed",
				zap.String("field", d.DisplayName()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if err := sleepCtx(ctx, h.settle); err != nil {
			return err
		}

		var matched bool
		if err := h.page.Eval(ctx, d.FrameID, pickScript, &matched); err != nil {
			h.logger.Warn("Option pick failed",
				zap.String("field", d.DisplayName()),
				zap.String("option", pick.Label),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		if matched {
			// Give the widget a beat to commit the selection and close.
			return sleepCtx(ctx, h.settle)
		}
	}
	return fieldErr(d.DisplayName(), pick.Label, ErrBindFailed)
}

// MergeOptions folds freshly harvested options into a descriptor's existing
// set, de-duplicating by normalized label and keeping first-seen order.
// Append-only: harvesting can only ever widen the known option set.
func MergeOptions(existing, harvested []schemas.Option) []schemas.Option {
	out := make([]schemas.Option, 0, len(existing)+len(harvested))
	seen := make(map[string]bool, len(existing)+len(harvested))
	for _, group := range [][]schemas.Option{existing, harvested} {
		for _, o := range group {
			key := strings.ToLower(strings.TrimSpace(o.Label))
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(o.Value))
			}
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, o)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
