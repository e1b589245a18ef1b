// File: internal/ask/asker.go

// Package ask implements the human-in-the-loop channel over a terminal.
// Prompts render numbered menus and accept an index, an exact label or
// value, or a unique substring; blank input always means "skip".
package ask

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/xkilldash9x/applypilot/api/schemas"
)

// TerminalAsker satisfies schemas.Asker over a reader/writer pair, normally
// stdin/stdout. Reads run on a dedicated goroutine so a cancelled context
// unblocks the caller even while the terminal sits idle.
type TerminalAsker struct {
	w io.Writer
	r io.Reader

	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	text string
	err  error
}

func NewTerminalAsker(r io.Reader, w io.Writer) *TerminalAsker {
	return &TerminalAsker{r: r, w: w}
}

var _ schemas.Asker = (*TerminalAsker)(nil)

// AskFreeText poses an open question. Empty reply means skipped.
func (t *TerminalAsker) AskFreeText(ctx context.Context, prompt string) (string, error) {
	fmt.Fprintf(t.w, "[input needed] %s: ", prompt)
	return t.readLine(ctx)
}

// AskChoice renders a numbered menu and resolves the reply to exactly one
// option, re-prompting until the reply is unambiguous or blank.
func (t *TerminalAsker) AskChoice(ctx context.Context, prompt string, options []schemas.Option) (schemas.Option, error) {
	opts := usable(options)
	if len(opts) == 0 {
		fmt.Fprintf(t.w, "[warn] No options found for: %s\n", prompt)
		return schemas.Option{}, nil
	}
	t.printMenu("[choose]", prompt, opts)
	for {
		fmt.Fprint(t.w, "Enter number or type an option (blank to skip): ")
		reply, err := t.readLine(ctx)
		if err != nil {
			return schemas.Option{}, err
		}
		if reply == "" {
			return schemas.Option{}, nil
		}
		opt, outcome := resolve(reply, opts)
		switch outcome {
		case matchOne:
			return opt, nil
		case matchMany:
			fmt.Fprintln(t.w, "Multiple matches; please be more specific.")
		default:
			fmt.Fprintln(t.w, "No match; try again.")
		}
	}
}

// AskMultiChoice accepts several comma- or space-separated picks; every token
// must resolve uniquely or the whole reply is re-prompted.
func (t *TerminalAsker) AskMultiChoice(ctx context.Context, prompt string, options []schemas.Option) ([]schemas.Option, error) {
	opts := usable(options)
	if len(opts) == 0 {
		fmt.Fprintf(t.w, "[warn] No options found for: %s\n", prompt)
		return nil, nil
	}
	t.printMenu("[choose multiple]", prompt, opts)
	fmt.Fprintln(t.w, "Enter numbers (e.g., 1,3,5) or labels separated by commas. Blank to skip.")
	for {
		fmt.Fprint(t.w, "> ")
		reply, err := t.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if reply == "" {
			return nil, nil
		}

		tokens := strings.FieldsFunc(reply, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		picks := make([]schemas.Option, 0, len(tokens))
		seen := make(map[string]bool, len(tokens))
		ok := true
		for _, token := range tokens {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			opt, outcome := resolve(token, opts)
			if outcome != matchOne {
				ok = false
				break
			}
			key := opt.Value + "\x00" + opt.Label
			if seen[key] {
				continue
			}
			seen[key] = true
			picks = append(picks, opt)
		}
		if ok && len(picks) > 0 {
			return picks, nil
		}
		fmt.Fprintln(t.w, "Some items didn't match uniquely; try again.")
	}
}

// Confirm poses a yes/no question; empty input counts as no, so nothing
// destructive ever rides an accidental Enter.
func (t *TerminalAsker) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(t.w, "%s [y/N] ", prompt)
	reply, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	reply = strings.ToLower(reply)
	return reply == "y" || reply == "yes", nil
}

func (t *TerminalAsker) printMenu(tag, prompt string, opts []schemas.Option) {
	fmt.Fprintf(t.w, "%s %s\n", tag, prompt)
	for i, o := range opts {
		fmt.Fprintf(t.w, "  %d. %s [%s]\n", i+1, o.Label, o.Value)
	}
}

// readLine hands back the next input line, trimmed. The reader goroutine
// starts lazily and stays one line ahead at most.
func (t *TerminalAsker) readLine(ctx context.Context) (string, error) {
	t.once.Do(func() {
		t.lines = make(chan lineResult)
		go func() {
			scanner := bufio.NewScanner(t.r)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				t.lines <- lineResult{text: scanner.Text()}
			}
			if err := scanner.Err(); err != nil {
				t.lines <- lineResult{err: err}
			}
			close(t.lines)
		}()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, open := <-t.lines:
		if !open {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.text), nil
	}
}

// usable drops options with neither value nor label and backfills empty
// values from labels so every menu entry is selectable.
func usable(options []schemas.Option) []schemas.Option {
	out := make([]schemas.Option, 0, len(options))
	for _, o := range options {
		if o.Value == "" {
			o.Value = o.Label
		}
		if o.Value == "" {
			continue
		}
		out = append(out, o)
	}
	return out
}

type matchOutcome int

const (
	matchNone matchOutcome = iota
	matchOne
	matchMany
)

// resolve maps one reply token to an option: menu index first, then exact
// label or value ignoring case, then unique case-insensitive substring.
func resolve(token string, opts []schemas.Option) (schemas.Option, matchOutcome) {
	if idx, err := strconv.Atoi(token); err == nil {
		if idx >= 1 && idx <= len(opts) {
			return opts[idx-1], matchOne
		}
		return schemas.Option{}, matchNone
	}

	low := strings.ToLower(token)
	for _, o := range opts {
		if strings.ToLower(o.Label) == low || strings.ToLower(o.Value) == low {
			return o, matchOne
		}
	}

	var hits []schemas.Option
	for _, o := range opts {
		if strings.Contains(strings.ToLower(o.Label), low) || strings.Contains(strings.ToLower(o.Value), low) {
			hits = append(hits, o)
		}
	}
	switch len(hits) {
	case 1:
		return hits[0], matchOne
	case 0:
		return schemas.Option{}, matchNone
	default:
		return schemas.Option{}, matchMany
	}
}
