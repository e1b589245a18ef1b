// File: internal/mocks/mocks.go

// Package mocks holds the test doubles shared across package tests: a
// scriptable page, a queued asker, and a testify mock for the LLM client.
// Production code never imports this package.
package mocks

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/applypilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- LLM Client Mock --

// LLMClient mocks schemas.LLMClient.
type LLMClient struct {
	mock.Mock
}

func (m *LLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *LLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Scripted Asker --

// Asker replays queued replies and records every prompt it was shown. An
// exhausted queue answers with the zero value, which the planner treats as a
// skip.
type Asker struct {
	FreeTexts []string
	Choices   []schemas.Option
	Multi     [][]schemas.Option
	Confirms  []bool

	Prompts []string
}

var _ schemas.Asker = (*Asker)(nil)

func (a *Asker) AskFreeText(_ context.Context, prompt string) (string, error) {
	a.Prompts = append(a.Prompts, prompt)
	if len(a.FreeTexts) == 0 {
		return "", nil
	}
	v := a.FreeTexts[0]
	a.FreeTexts = a.FreeTexts[1:]
	return v, nil
}

func (a *Asker) AskChoice(_ context.Context, prompt string, _ []schemas.Option) (schemas.Option, error) {
	a.Prompts = append(a.Prompts, prompt)
	if len(a.Choices) == 0 {
		return schemas.Option{}, nil
	}
	v := a.Choices[0]
	a.Choices = a.Choices[1:]
	return v, nil
}

func (a *Asker) AskMultiChoice(_ context.Context, prompt string, _ []schemas.Option) ([]schemas.Option, error) {
	a.Prompts = append(a.Prompts, prompt)
	if len(a.Multi) == 0 {
		return nil, nil
	}
	v := a.Multi[0]
	a.Multi = a.Multi[1:]
	return v, nil
}

func (a *Asker) Confirm(_ context.Context, prompt string) (bool, error) {
	a.Prompts = append(a.Prompts, prompt)
	if len(a.Confirms) == 0 {
		return false, nil
	}
	v := a.Confirms[0]
	a.Confirms = a.Confirms[1:]
	return v, nil
}

// -- Scriptable Page --

// Page implements the page contracts of the scanner, harvester, binder,
// submitter, judge and runner through per-method hooks. Unset hooks return
// benign defaults so each test scripts only what it cares about.
type Page struct {
	NavigateFunc       func(ctx context.Context, url string) error
	LocationFunc       func(ctx context.Context) (string, error)
	TitleFunc          func(ctx context.Context) (string, error)
	HTMLFunc           func(ctx context.Context) (string, error)
	ScreenshotFunc     func(ctx context.Context) ([]byte, error)
	ExecutionRootsFunc func(ctx context.Context) ([]string, error)
	EvalFunc           func(ctx context.Context, root, script string, out any) error
	EvalAsyncFunc      func(ctx context.Context, root, script string, out any) error
	SetFilesFunc       func(ctx context.Context, root, locatorJS string, files []string) error
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.NavigateFunc == nil {
		return nil
	}
	return p.NavigateFunc(ctx, url)
}

func (p *Page) Location(ctx context.Context) (string, error) {
	if p.LocationFunc == nil {
		return "", nil
	}
	return p.LocationFunc(ctx)
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if p.TitleFunc == nil {
		return "", nil
	}
	return p.TitleFunc(ctx)
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if p.HTMLFunc == nil {
		return "", nil
	}
	return p.HTMLFunc(ctx)
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if p.ScreenshotFunc == nil {
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}
	return p.ScreenshotFunc(ctx)
}

func (p *Page) ExecutionRoots(ctx context.Context) ([]string, error) {
	if p.ExecutionRootsFunc == nil {
		return []string{"top"}, nil
	}
	return p.ExecutionRootsFunc(ctx)
}

func (p *Page) Eval(ctx context.Context, root, script string, out any) error {
	if p.EvalFunc == nil {
		return nil
	}
	return p.EvalFunc(ctx, root, script, out)
}

func (p *Page) EvalAsync(ctx context.Context, root, script string, out any) error {
	if p.EvalAsyncFunc == nil {
		return nil
	}
	return p.EvalAsyncFunc(ctx, root, script, out)
}

func (p *Page) SetFiles(ctx context.Context, root, locatorJS string, files []string) error {
	if p.SetFilesFunc == nil {
		return nil
	}
	return p.SetFilesFunc(ctx, root, locatorJS, files)
}

// WriteJSON assigns v to an Eval out-parameter the way the real session does,
// by a JSON round trip. out must be a non-nil pointer.
func WriteJSON(out, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding eval result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding eval result into %T: %w", out, err)
	}
	return nil
}
