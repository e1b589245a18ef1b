// File: internal/form/page.go
package form

import "context"

// Page is the browsing surface the fill protocol runs against. It is
// deliberately small: every protocol step is script evaluation inside one
// execution root, plus the one CDP-level primitive (file attachment) that
// scripts cannot perform. *browser.Session satisfies it.
type Page interface {
	// ExecutionRoots lists the evaluation roots of the current document, the
	// top frame first. Same-process child frames are reached by script from
	// their parent root and do not appear.
	ExecutionRoots(ctx context.Context) ([]string, error)

	// Eval runs a script expression in the given root and unmarshals its
	// value into out. Pass nil to discard the result.
	Eval(ctx context.Context, root, script string, out any) error

	// EvalAsync runs a promise-returning script and waits for it to settle.
	EvalAsync(ctx context.Context, root, script string, out any) error

	// SetFiles attaches local files to the input element that locatorJS
	// evaluates to.
	SetFiles(ctx context.Context, root, locatorJS string, files []string) error
}
