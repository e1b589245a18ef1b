// File: internal/form/submit.go
package form

import (
	"context"

	"go.uber.org/zap"
)

// submitJS clicks the first actionable submit trigger, trying the most
// specific wording first so a multi-step form's "Next" is only used when
// nothing better exists. Returns a short description of what was clicked, or
// an empty string.
const submitJS = `
    const buttons = [];
    walkDocs((doc) => {
        let found = [];
        try { found = doc.querySelectorAll('button'); } catch (e) { return; }
        for (const b of found) buttons.push(b);
    });
    const clickButton = (needle) => {
        for (const b of buttons) {
            if (!visible(b)) continue;
            if (textOf(b).toLowerCase().indexOf(needle) === -1) continue;
            clickEl(b);
            return true;
        }
        return false;
    };
    const clickSelector = (sel) => {
        let clicked = false;
        walkDocs((doc) => {
            if (clicked) return;
            let found = [];
            try { found = doc.querySelectorAll(sel); } catch (e) { return; }
            for (const el of found) {
                if (!visible(el)) continue;
                clickEl(el);
                clicked = true;
                return;
            }
        });
        return clicked;
    };
    for (const needle of ['submit application', 'apply', 'submit']) {
        if (clickButton(needle)) return 'button:' + needle;
    }
    for (const sel of ['input[type="submit"]', 'button[type="submit"]']) {
        if (clickSelector(sel)) return sel;
    }
    for (const needle of ['next', 'continue']) {
        if (clickButton(needle)) return 'button:' + needle;
    }
    return '';
`

// successJS scans the rendered text for confirmation wording. Best-effort: a
// miss means "unknown", never "failed".
const successJS = `
    const phrases = [
        'thank you for applying',
        'application submitted',
        'we received your application',
        'thanks for your application',
        'your application has been received',
        'received',
        'submitted',
        'thank you',
    ];
    let hay = '';
    walkDocs((doc) => {
        if (doc.body) hay += ' ' + textOf(doc.body).toLowerCase();
    });
    for (const p of phrases) {
        if (hay.indexOf(p) !== -1) return true;
    }
    return false;
`

// Submitter fires the form's submit trigger and reads back the page's verdict.
type Submitter struct {
	page   Page
	logger *zap.Logger
}

func NewSubmitter(page Page, logger *zap.Logger) *Submitter {
	return &Submitter{page: page, logger: logger.Named("submitter")}
}

// Submit walks the execution roots in order and clicks the first recognized
// submit trigger. The returned string describes the clicked trigger for the
// run record. ErrNoSubmitTrigger when no root offers one; callers report that
// rather than treating it as a hard failure.
func (s *Submitter) Submit(ctx context.Context) (string, error) {
	roots, err := s.page.ExecutionRoots(ctx)
	if err != nil {
		return "", err
	}
	script := wrapJS(submitJS)
	for _, root := range roots {
		var trigger string
		if err := s.page.Eval(ctx, root, script, &trigger); err != nil {
			s.logger.Warn("Submit trigger search failed in frame", zap.String("frame", root), zap.Error(err))
			continue
		}
		if trigger != "" {
			s.logger.Info("Clicked submit trigger", zap.String("trigger", trigger), zap.String("frame", root))
			return trigger, nil
		}
	}
	return "", ErrNoSubmitTrigger
}

// DetectSuccess reports whether the page text looks like a submission
// confirmation. Heuristic only: false means unknown.
func (s *Submitter) DetectSuccess(ctx context.Context) bool {
	roots, err := s.page.ExecutionRoots(ctx)
	if err != nil {
		s.logger.Warn("Frame enumeration failed during success check", zap.Error(err))
		return false
	}
	script := wrapJS(successJS)
	for _, root := range roots {
		var found bool
		if err := s.page.Eval(ctx, root, script, &found); err != nil {
			s.logger.Debug("Success check failed in frame", zap.String("frame", root), zap.Error(err))
			continue
		}
		if found {
			return true
		}
	}
	return false
}
