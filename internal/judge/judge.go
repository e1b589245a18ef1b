// File: internal/judge/judge.go

// Package judge resolves the real application form page from a job posting
// URL by walking Apply-style controls, bounded by a hop budget, and
// classifying the ATS provider hosting the result.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

// hopSettle is the pause after each Apply click before the page is inspected
// again; client-side routers rarely finish a transition faster.
var hopSettle = time.Second

// Browser is the slice of the session the judge needs. *browser.Session
// satisfies it.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	ExecutionRoots(ctx context.Context) ([]string, error)
	Eval(ctx context.Context, root, script string, out any) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// ScreenshotSink receives labeled page captures along the hunt. May be nil.
type ScreenshotSink func(label string, png []byte)

// atsProviders maps URL fragments to the tracking system serving the form.
// Checked in order; first hit wins.
var atsProviders = []struct {
	name  string
	hints []string
}{
	{"ashby", []string{"ashbyhq.com"}},
	{"taleo", []string{"taleo.net"}},
	{"smartrecruiters", []string{"smartrecruiters.com"}},
	{"bamboohr", []string{"bamboohr.com"}},
	{"zoho", []string{"zoho.com", "zoho.in"}},
	{"icims", []string{"icims.com"}},
	{"oracle", []string{"oraclecloud.com"}},
	{"greenhouse", []string{"greenhouse.io"}},
	{"lever", []string{"lever.co"}},
	{"workday", []string{"myworkdayjobs.com", "workday.com"}},
}

// ClassifyATS names the ATS provider behind a URL, or "unknown".
func ClassifyATS(url string) string {
	u := strings.ToLower(url)
	for _, p := range atsProviders {
		for _, h := range p.hints {
			if strings.Contains(u, h) {
				return p.name
			}
		}
	}
	return "unknown"
}

// judgeHelpers is the script prelude shared by the judge's page probes.
const judgeHelpers = `
    const walkDocs = (visit) => {
        const seen = new Set();
        const walk = (doc) => {
            if (!doc || seen.has(doc)) return;
            seen.add(doc);
            visit(doc);
            let frames = [];
            try { frames = doc.querySelectorAll('iframe, frame'); } catch (e) { return; }
            for (const f of frames) {
                try { if (f.contentDocument) walk(f.contentDocument); } catch (e) {}
            }
        };
        walk(document);
    };
    const visible = (el) => {
        if (!el || !el.isConnected) return false;
        const win = (el.ownerDocument && el.ownerDocument.defaultView) || window;
        let st = null;
        try { st = win.getComputedStyle(el); } catch (e) {}
        if (st && (st.display === 'none' || st.visibility === 'hidden')) return false;
        const r = el.getBoundingClientRect();
        return (r.width > 0 && r.height > 0) || el.getClientRects().length > 0;
    };
    const textOf = (el) => {
        if (!el) return '';
        const raw = (el.innerText !== undefined && el.innerText !== null) ? el.innerText : el.textContent;
        return (raw || '').replace(/\s+/g, ' ').trim();
    };
    const clickEl = (el) => {
        try { el.scrollIntoView({ block: 'center', inline: 'nearest' }); } catch (e) {}
        const win = (el.ownerDocument && el.ownerDocument.defaultView) || window;
        const init = { bubbles: true, cancelable: true, view: win };
        try { el.dispatchEvent(new win.MouseEvent('mousedown', init)); } catch (e) {}
        try { el.dispatchEvent(new win.MouseEvent('mouseup', init)); } catch (e) {}
        try {
            if (typeof el.click === 'function') { el.click(); }
            else { el.dispatchEvent(new win.MouseEvent('click', init)); }
        } catch (e) {}
    };
`

// countJS reports per-document control counts so a form living in an embedded
// board iframe is attributed to that frame's URL.
const countJS = `(() => {
"use strict";` + judgeHelpers + `
    const out = [];
    walkDocs((doc) => {
        let count = 0;
        const add = (sel) => {
            let n = 0;
            try { n = doc.querySelectorAll(sel).length; } catch (e) {}
            count += Math.min(n, 200);
        };
        add("input:not([type='hidden']):not([type='button']):not([type='reset'])");
        add('select');
        add('textarea');
        add("[role='combobox']");
        let url = '';
        try { url = (doc.location && doc.location.href) || ''; } catch (e) {}
        out.push({ url: url, count: count });
    });
    return out;
})()`

// applyJS clicks the most promising Apply-style control. Links are forced to
// open in place and window.open is redirected into the current tab, since the
// session drives a single page.
const applyJS = `(() => {
"use strict";` + judgeHelpers + `
    try { window.open = (u) => { if (u) window.location.href = u; return window; }; } catch (e) {}
    const wanted = (el) => {
        const name = (textOf(el) + ' ' + (el.getAttribute('aria-label') || '')).toLowerCase();
        return /(apply|submit|start application)/.test(name);
    };
    const retarget = (el) => {
        try {
            if (el.tagName && el.tagName.toLowerCase() === 'a') el.setAttribute('target', '_self');
            const a = el.closest ? el.closest('a') : null;
            if (a) a.setAttribute('target', '_self');
        } catch (e) {}
    };
    const tryClick = (selector, accept) => {
        let clicked = false;
        walkDocs((doc) => {
            if (clicked) return;
            let els = [];
            try { els = doc.querySelectorAll(selector); } catch (e) { return; }
            for (const el of els) {
                if (!visible(el) || !accept(el)) continue;
                retarget(el);
                clickEl(el);
                clicked = true;
                return;
            }
        });
        return clicked;
    };
    if (tryClick("button, input[type='submit'], [role='button']", wanted)) return true;
    if (tryClick("a, [role='link']", wanted)) return true;
    return tryClick("a, button, [role='button']", (el) => textOf(el).toLowerCase().indexOf('apply') !== -1);
})()`

// indicatorJS is the looser landing check: anything that smells like a
// contact or application form.
const indicatorJS = `(() => {
"use strict";` + judgeHelpers + `
    const sels = ["form", "[action]", "input[type='email']", "input[name*='email']", "input[name*='name']", "textarea", "select"];
    let hit = false;
    walkDocs((doc) => {
        if (hit) return;
        for (const sel of sels) {
            try { if (doc.querySelectorAll(sel).length > 0) { hit = true; return; } } catch (e) {}
        }
    });
    return hit;
})()`

// basicJS is the last-resort check before assuming the current page is the
// form anyway.
const basicJS = `(() => {
"use strict";` + judgeHelpers + `
    const sels = ["input", "button", "form", "textarea", "select", "[type='email']", "[type='text']", "a[href*='mailto']"];
    let hit = false;
    walkDocs((doc) => {
        if (hit) return;
        for (const sel of sels) {
            try { if (doc.querySelectorAll(sel).length > 0) { hit = true; return; } } catch (e) {}
        }
    });
    return hit;
})()`

type docCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// Judge walks a job posting toward its application form.
type Judge struct {
	browser Browser
	cfg     config.JudgeConfig
	shots   ScreenshotSink
	logger  *zap.Logger
}

func New(browser Browser, cfg config.JudgeConfig, shots ScreenshotSink, logger *zap.Logger) *Judge {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 6
	}
	if cfg.MinFormControls <= 0 {
		cfg.MinFormControls = 2
	}
	return &Judge{browser: browser, cfg: cfg, shots: shots, logger: logger.Named("judge")}
}

// Resolve navigates to startURL and hunts for a page carrying enough form
// controls, clicking Apply-style triggers up to the hop budget. Failures
// along the way are recorded on the result; only an unreachable landing page
// is a hard error.
func (j *Judge) Resolve(ctx context.Context, startURL string) (*schemas.JudgeResult, error) {
	res := &schemas.JudgeResult{
		StartURL: startURL,
		Status:   schemas.JudgeApplyMissing,
		Provider: "unknown",
	}

	if err := j.browser.Navigate(ctx, startURL); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("navigation error on landing: %v", err))
		return res, fmt.Errorf("failed to open landing page: %w", err)
	}
	j.snap(ctx, "landing")

	landing, err := j.browser.Location(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("location read failed: %v", err))
		landing = startURL
	}

	found, formURL, inFrame, perr := j.formPresence(ctx)
	if perr != nil {
		res.Errors = append(res.Errors, perr.Error())
	}
	if found {
		res.FinalURL = formURL
		res.FormInFrame = inFrame
		res.Steps = append(res.Steps, schemas.StepRecord{
			Action:    "detect_form_on_landing",
			URLBefore: landing,
			URLAfter:  landing,
			Note:      "form controls present on landing",
		})
	} else {
		j.walkApply(ctx, landing, res)
	}

	if res.FinalURL == "" {
		j.assumeFallback(ctx, res)
	}

	res.FormFound = res.FinalURL != ""
	if res.FormFound {
		res.Status = schemas.JudgeFormFound
	}
	current, _ := j.browser.Location(ctx)
	if res.FinalURL != "" {
		res.Provider = ClassifyATS(res.FinalURL)
	} else {
		res.Provider = ClassifyATS(current)
	}

	j.logger.Info("Form page resolution finished",
		zap.String("status", res.Status),
		zap.String("provider", res.Provider),
		zap.String("final_url", res.FinalURL),
		zap.Int("steps", len(res.Steps)))
	return res, nil
}

// walkApply clicks toward the form, detecting loops by URL revisits.
func (j *Judge) walkApply(ctx context.Context, landing string, res *schemas.JudgeResult) {
	seen := map[string]bool{landing: true}
	roots, err := j.browser.ExecutionRoots(ctx)
	if err != nil || len(roots) == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("frame enumeration failed: %v", err))
		return
	}
	top := roots[0]

	for hop := 1; hop <= j.cfg.MaxHops; hop++ {
		before, _ := j.browser.Location(ctx)

		var clicked bool
		if err := j.browser.Eval(ctx, top, applyJS, &clicked); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("apply click failed on hop %d: %v", hop, err))
			return
		}
		if !clicked {
			res.Steps = append(res.Steps, schemas.StepRecord{
				Action:    "apply_not_found",
				URLBefore: before,
				Note:      "no apply-like control",
			})
			return
		}

		if err := sleepCtx(ctx, hopSettle); err != nil {
			res.Errors = append(res.Errors, err.Error())
			return
		}

		after, _ := j.browser.Location(ctx)
		res.Steps = append(res.Steps, schemas.StepRecord{
			Action:    "click_apply",
			URLBefore: before,
			URLAfter:  after,
		})
		j.snap(ctx, fmt.Sprintf("after_click_%d", hop))

		if seen[after] {
			res.Steps = append(res.Steps, schemas.StepRecord{
				Action:    "loop_detected",
				URLBefore: after,
				Note:      "url repeated",
			})
			return
		}
		seen[after] = true

		found, formURL, inFrame, perr := j.formPresence(ctx)
		if perr != nil {
			res.Errors = append(res.Errors, perr.Error())
		}
		if found {
			res.FinalURL = formURL
			res.FormInFrame = inFrame
			res.Steps = append(res.Steps, schemas.StepRecord{
				Action:    "detect_form_after_click",
				URLBefore: after,
				URLAfter:  after,
				Note:      "form controls present",
			})
			return
		}
	}
}

// formPresence decides whether the current page carries the application form,
// and where. Tiered: enough controls in the top frame, enough in any child
// document, any controls at all, then loose form indicators.
func (j *Judge) formPresence(ctx context.Context) (bool, string, bool, error) {
	roots, err := j.browser.ExecutionRoots(ctx)
	if err != nil {
		return false, "", false, fmt.Errorf("frame enumeration failed: %w", err)
	}
	if len(roots) == 0 {
		return false, "", false, nil
	}

	perRoot := make([][]docCount, len(roots))
	for i, root := range roots {
		var counts []docCount
		if err := j.browser.Eval(ctx, root, countJS, &counts); err != nil {
			j.logger.Debug("Control count failed in frame", zap.String("frame", root), zap.Error(err))
			continue
		}
		perRoot[i] = counts
	}

	topURL, _ := j.browser.Location(ctx)
	min := j.cfg.MinFormControls

	if len(perRoot[0]) > 0 && perRoot[0][0].Count >= min {
		return true, topURL, false, nil
	}
	total := 0
	for i, counts := range perRoot {
		for n, dc := range counts {
			total += dc.Count
			if i == 0 && n == 0 {
				continue
			}
			if dc.Count >= min {
				url := dc.URL
				if url == "" {
					url = topURL
				}
				return true, url, true, nil
			}
		}
	}
	if total > 0 {
		return true, topURL, false, nil
	}

	var loose bool
	if err := j.browser.Eval(ctx, roots[0], indicatorJS, &loose); err == nil && loose {
		return true, topURL, false, nil
	}
	return false, "", false, nil
}

func (j *Judge) assumeFallback(ctx context.Context, res *schemas.JudgeResult) {
	roots, err := j.browser.ExecutionRoots(ctx)
	if err != nil || len(roots) == 0 {
		return
	}
	var basic bool
	if err := j.browser.Eval(ctx, roots[0], basicJS, &basic); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("fallback check error: %v", err))
		return
	}
	if !basic {
		return
	}
	current, _ := j.browser.Location(ctx)
	res.FinalURL = current
	res.Steps = append(res.Steps, schemas.StepRecord{
		Action:    "fallback_assume_form",
		URLBefore: current,
		URLAfter:  current,
		Note:      "assuming current page is the form page",
	})
}

func (j *Judge) snap(ctx context.Context, label string) {
	if j.shots == nil {
		return
	}
	png, err := j.browser.Screenshot(ctx)
	if err != nil {
		j.logger.Debug("Screenshot failed", zap.String("label", label), zap.Error(err))
		return
	}
	j.shots(label, png)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
