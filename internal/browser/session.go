// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/internal/config"
)

// TopFrame is the execution root identifier for the main document. Every
// other root is the target ID of an out-of-process iframe.
const TopFrame = "top"

// Session is a single browser tab plus the attached iframe targets reachable
// from it. All page inspection and mutation goes through script evaluation
// against one of its execution roots.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	onClose func()

	mu       sync.Mutex
	isClosed bool

	// frames caches contexts attached to out-of-process iframe targets,
	// keyed by target ID.
	framesMu sync.Mutex
	frames   map[string]*frameRoot
}

type frameRoot struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(allocatorCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	ctx, cancel := chromedp.NewContext(allocatorCtx)

	// Running an empty task list realizes the tab and connects CDP.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	return &Session{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("session"),
		cfg:    cfg,
		frames: make(map[string]*frameRoot),
	}, nil
}

// combineContext derives a context from the session lifetime that is also
// canceled when the caller's context is.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// run executes chromedp actions against the top frame, honoring both the
// session lifetime and the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runInRoot executes chromedp actions against a specific execution root.
func (s *Session) runInRoot(ctx context.Context, root string, actions ...chromedp.Action) error {
	frameCtx, err := s.rootContext(ctx, root)
	if err != nil {
		return err
	}
	runCtx, cancel := combineContext(frameCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// rootContext resolves an execution root identifier to a chromedp context.
func (s *Session) rootContext(ctx context.Context, root string) (context.Context, error) {
	if root == "" || root == TopFrame {
		return s.ctx, nil
	}

	s.framesMu.Lock()
	defer s.framesMu.Unlock()

	if fr, ok := s.frames[root]; ok {
		if fr.ctx.Err() == nil {
			return fr.ctx, nil
		}
		fr.cancel()
		delete(s.frames, root)
	}

	frameCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(target.ID(root)))
	attachCtx, attachCancel := combineContext(frameCtx, ctx)
	defer attachCancel()
	if err := chromedp.Run(attachCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to attach to frame target %s: %w", root, err)
	}
	s.frames[root] = &frameRoot{ctx: frameCtx, cancel: cancel}
	return frameCtx, nil
}

// Navigate loads a URL and waits for the document plus the configured
// post-load settle. Attached frame contexts are discarded since navigation
// replaces the frame tree.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.dropFrames()

	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if s.cfg.PostLoadWait > 0 {
		if err := s.run(ctx, chromedp.Sleep(s.cfg.PostLoadWait)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) dropFrames() {
	s.framesMu.Lock()
	defer s.framesMu.Unlock()
	for id, fr := range s.frames {
		fr.cancel()
		delete(s.frames, id)
	}
}

// Location reports the top frame URL after any redirects.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Title reports the document title of the top frame.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// HTML returns the serialized DOM of the top frame.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot captures the full viewport as PNG-quality JPEG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 85)); err != nil {
		return nil, err
	}
	return buf, nil
}

// ExecutionRoots lists the evaluation roots of the current page: the top
// frame plus every out-of-process iframe target. Same-process iframes are
// reachable from their parent root by script, so they do not appear here.
func (s *Session) ExecutionRoots(ctx context.Context) ([]string, error) {
	roots := []string{TopFrame}

	targetsCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(targetsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate frame targets: %w", err)
	}
	for _, info := range infos {
		if info.Type == "iframe" {
			roots = append(roots, string(info.TargetID))
		}
	}
	return roots, nil
}

// Eval runs a script in the given execution root and unmarshals its return
// value into out. Pass nil to discard the result.
func (s *Session) Eval(ctx context.Context, root, script string, out any) error {
	return s.runInRoot(ctx, root, chromedp.Evaluate(script, out))
}

// EvalAsync runs a promise-returning script and waits for it to settle
// before unmarshaling the resolved value.
func (s *Session) EvalAsync(ctx context.Context, root, script string, out any) error {
	return s.runInRoot(ctx, root, chromedp.Evaluate(script, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

// SetFiles attaches local files to the input element produced by locatorJS,
// which must evaluate to the element itself.
func (s *Session) SetFiles(ctx context.Context, root, locatorJS string, files []string) error {
	return s.runInRoot(ctx, root, chromedp.ActionFunc(func(c context.Context) error {
		obj, exc, err := runtime.Evaluate(locatorJS).Do(c)
		if err != nil {
			return fmt.Errorf("file input lookup failed: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("file input lookup threw: %s", exc.Text)
		}
		if obj == nil || obj.ObjectID == "" {
			return fmt.Errorf("file input lookup returned no element")
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(c)

		if err := dom.SetFileInputFiles(files).WithObjectID(obj.ObjectID).Do(c); err != nil {
			return fmt.Errorf("failed to set files on input: %w", err)
		}
		return nil
	}))
}

// Close tears down attached frames and the tab. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing session")
	s.dropFrames()
	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
