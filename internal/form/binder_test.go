// File: internal/form/binder_test.go
package form

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
	"github.com/xkilldash9x/applypilot/internal/mocks"
)

func newTestBinder(t *testing.T, page Page, cfg config.FormConfig) *Binder {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewBinder(page, NewHarvester(page, cfg, logger), cfg, logger)
}

func TestBinder_BindText_SingleWrite(t *testing.T) {
	t.Parallel()

	var script string
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, root, s string, out any) error {
			script = s
			assert.Equal(t, "top", root)
			return mocks.WriteJSON(out, true)
		},
		EvalAsyncFunc: func(_ context.Context, _, _ string, _ any) error {
			t.Fatal("zero typing delay must use the synchronous path")
			return nil
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	d := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-1", Kind: schemas.WidgetTextInput, LabelText: "Email"}
	err := b.Bind(context.Background(), d, schemas.PlannedValue{Text: "jane@doe.dev"})
	require.NoError(t, err)
	assert.Contains(t, script, `"ap-1"`)
	assert.Contains(t, script, `"jane@doe.dev"`)
	assert.Contains(t, script, "setNativeValue")
}

func TestBinder_BindText_Typewrites(t *testing.T) {
	t.Parallel()

	var asyncCalls int
	page := &mocks.Page{
		EvalAsyncFunc: func(_ context.Context, _, script string, out any) error {
			asyncCalls++
			assert.Contains(t, script, "setTimeout")
			return mocks.WriteJSON(out, true)
		},
	}
	b := newTestBinder(t, page, config.FormConfig{TypingDelay: 5 * time.Millisecond})

	d := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-1", Kind: schemas.WidgetTextInput, LabelText: "Email"}
	require.NoError(t, b.Bind(context.Background(), d, schemas.PlannedValue{Text: "short"}))
	assert.Equal(t, 1, asyncCalls)
}

// TestBinder_BindText_LongValueSkipsTyping verifies cover-letter-sized values
// take the one-shot write even when a typing delay is configured.
func TestBinder_BindText_LongValueSkipsTyping(t *testing.T) {
	t.Parallel()

	var evalCalls int
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, out any) error {
			evalCalls++
			return mocks.WriteJSON(out, true)
		},
		EvalAsyncFunc: func(_ context.Context, _, _ string, _ any) error {
			t.Fatal("long values must not typewrite")
			return nil
		},
	}
	b := newTestBinder(t, page, config.FormConfig{TypingDelay: 5 * time.Millisecond})

	long := strings.Repeat("The quick brown fox. ", 20)
	d := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-1", Kind: schemas.WidgetTextArea, LabelText: "Cover letter"}
	require.NoError(t, b.Bind(context.Background(), d, schemas.PlannedValue{Text: long}))
	assert.Equal(t, 1, evalCalls)
}

func TestBinder_BindText_Failure(t *testing.T) {
	t.Parallel()

	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, out any) error {
			return mocks.WriteJSON(out, false)
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	d := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-1", Kind: schemas.WidgetTextInput, LabelText: "Email"}
	err := b.Bind(context.Background(), d, schemas.PlannedValue{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindFailed)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Email", fe.Field)
}

func TestBinder_BindSelect(t *testing.T) {
	t.Parallel()

	var script string
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, s string, out any) error {
			script = s
			return mocks.WriteJSON(out, true)
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	d := &schemas.FieldDescriptor{
		FrameID: "top", Handle: "ap-2", Kind: schemas.WidgetNativeSelect, LabelText: "Country",
		Options: []schemas.Option{{Value: "us", Label: "United States"}},
	}
	require.NoError(t, b.Bind(context.Background(), d, schemas.PlannedValue{Values: []string{"us"}}))
	assert.Contains(t, script, `["us"]`)
}

func TestBinder_BindSelect_NothingWanted(t *testing.T) {
	t.Parallel()

	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, _ any) error {
			t.Fatal("an empty decision must not touch the page")
			return nil
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	d := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-2", Kind: schemas.WidgetNativeSelect}
	require.NoError(t, b.Bind(context.Background(), d, schemas.PlannedValue{}))
}

func TestBinder_BindToggleAndRadio(t *testing.T) {
	t.Parallel()

	var scripts []string
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, s string, out any) error {
			scripts = append(scripts, s)
			return mocks.WriteJSON(out, true)
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	box := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-3", Kind: schemas.WidgetCheckbox, LabelText: "I agree"}
	require.NoError(t, b.Bind(context.Background(), box, schemas.PlannedValue{Checked: true}))

	radio := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-4", Kind: schemas.WidgetRadio, LabelText: "Yes"}
	require.NoError(t, b.Bind(context.Background(), radio, schemas.PlannedValue{Values: []string{"yes"}}))

	require.Len(t, scripts, 2)
	assert.Contains(t, scripts[0], `"ap-3"`)
	assert.Contains(t, scripts[1], `"ap-4"`)
}

func TestBinder_BindFile(t *testing.T) {
	t.Parallel()

	var gotRoot, gotLocator string
	var gotFiles []string
	page := &mocks.Page{
		SetFilesFunc: func(_ context.Context, root, locatorJS string, files []string) error {
			gotRoot, gotLocator, gotFiles = root, locatorJS, files
			return nil
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	d := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-5", Kind: schemas.WidgetFileUpload, LabelText: "Resume"}
	require.NoError(t, b.Bind(context.Background(), d, schemas.PlannedValue{Text: "/tmp/resume.pdf"}))

	assert.Equal(t, "top", gotRoot)
	assert.Contains(t, gotLocator, `"ap-5"`)
	assert.Equal(t, []string{"/tmp/resume.pdf"}, gotFiles)
}

func TestBinder_BindFile_NoPath(t *testing.T) {
	t.Parallel()

	b := newTestBinder(t, &mocks.Page{}, config.FormConfig{})
	d := &schemas.FieldDescriptor{FrameID: "top", Handle: "ap-5", Kind: schemas.WidgetFileUpload, LabelText: "Resume"}
	assert.ErrorIs(t, b.Bind(context.Background(), d, schemas.PlannedValue{}), ErrBindFailed)
}

// TestBinder_BindCombobox_DelegatesToHarvester verifies synthetic widgets are
// filled by clicking a live menu entry, never by typing.
func TestBinder_BindCombobox_DelegatesToHarvester(t *testing.T) {
	t.Parallel()

	var opened, picked bool
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, script string, out any) error {
			switch {
			case strings.Contains(script, "openWidget(el)"):
				opened = true
				return mocks.WriteJSON(out, true)
			case strings.Contains(script, "const wantValue"):
				picked = true
				assert.Contains(t, script, `"30 days"`)
				return mocks.WriteJSON(out, true)
			default:
				t.Fatalf("unexpected script: %s", script)
				return nil
			}
		},
	}
	b := newTestBinder(t, page, config.FormConfig{HarvestAttempts: 1})

	d := &schemas.FieldDescriptor{
		FrameID: "top", Handle: "ap-6", Kind: schemas.WidgetSyntheticCombobox, LabelText: "Notice period",
		Options: []schemas.Option{{Value: "30 days", Label: "30 days"}},
	}
	require.NoError(t, b.Bind(context.Background(), d, schemas.PlannedValue{Values: []string{"30 days"}}))
	assert.True(t, opened)
	assert.True(t, picked)
}

func TestBinder_BindGroup_Radio(t *testing.T) {
	t.Parallel()

	var boundHandles []string
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, script string, out any) error {
			for _, h := range []string{"ap-yes", "ap-no"} {
				if strings.Contains(script, `"`+h+`"`) {
					boundHandles = append(boundHandles, h)
				}
			}
			return mocks.WriteJSON(out, true)
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	group := []*schemas.FieldDescriptor{
		{FrameID: "top", Handle: "ap-yes", Kind: schemas.WidgetRadio, GroupID: "remote", LabelText: "Yes", CurrentValue: "yes"},
		{FrameID: "top", Handle: "ap-no", Kind: schemas.WidgetRadio, GroupID: "remote", LabelText: "No", CurrentValue: "no"},
	}
	require.NoError(t, b.BindGroup(context.Background(), group, schemas.PlannedValue{Values: []string{"no"}}))
	assert.Equal(t, []string{"ap-no"}, boundHandles, "exactly the matching radio member is clicked")
}

func TestBinder_BindGroup_RadioMatchesByLabel(t *testing.T) {
	t.Parallel()

	var bound []string
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, script string, out any) error {
			for _, h := range []string{"ap-a", "ap-b"} {
				if strings.Contains(script, `"`+h+`"`) {
					bound = append(bound, h)
				}
			}
			return mocks.WriteJSON(out, true)
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	// Valueless radios share the browser default "on"; the label decides.
	group := []*schemas.FieldDescriptor{
		{FrameID: "top", Handle: "ap-a", Kind: schemas.WidgetRadio, GroupID: "g", LabelText: "Hybrid", CurrentValue: "on"},
		{FrameID: "top", Handle: "ap-b", Kind: schemas.WidgetRadio, GroupID: "g", LabelText: "On-site", CurrentValue: "on"},
	}
	require.NoError(t, b.BindGroup(context.Background(), group, schemas.PlannedValue{Values: []string{"on-site"}}))
	assert.Equal(t, []string{"ap-b"}, bound)
}

func TestBinder_BindGroup_CheckboxMembers(t *testing.T) {
	t.Parallel()

	var bound []string
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, script string, out any) error {
			for _, h := range []string{"ap-go", "ap-rust", "ap-cobol"} {
				if strings.Contains(script, `"`+h+`"`) {
					bound = append(bound, h)
				}
			}
			return mocks.WriteJSON(out, true)
		},
	}
	b := newTestBinder(t, page, config.FormConfig{})

	group := []*schemas.FieldDescriptor{
		{FrameID: "top", Handle: "ap-go", Kind: schemas.WidgetCheckbox, GroupID: "langs", LabelText: "Go", CurrentValue: "go"},
		{FrameID: "top", Handle: "ap-rust", Kind: schemas.WidgetCheckbox, GroupID: "langs", LabelText: "Rust", CurrentValue: "rust"},
		{FrameID: "top", Handle: "ap-cobol", Kind: schemas.WidgetCheckbox, GroupID: "langs", LabelText: "COBOL", CurrentValue: "cobol"},
	}
	pv := schemas.PlannedValue{Values: []string{"go", "rust"}}
	require.NoError(t, b.BindGroup(context.Background(), group, pv))
	assert.Equal(t, []string{"ap-go", "ap-rust"}, bound, "chosen members on, the rest untouched")
}

func TestBinder_BindGroup_NoMatch(t *testing.T) {
	t.Parallel()

	b := newTestBinder(t, &mocks.Page{}, config.FormConfig{})
	group := []*schemas.FieldDescriptor{
		{FrameID: "top", Handle: "ap-a", Kind: schemas.WidgetRadio, GroupID: "g", LabelText: "Yes", CurrentValue: "yes"},
	}
	err := b.BindGroup(context.Background(), group, schemas.PlannedValue{Values: []string{"maybe"}})
	assert.ErrorIs(t, err, ErrBindFailed)
}

func TestBinder_BindGroup_Empty(t *testing.T) {
	t.Parallel()
	b := newTestBinder(t, &mocks.Page{}, config.FormConfig{})
	assert.NoError(t, b.BindGroup(context.Background(), nil, schemas.PlannedValue{Values: []string{"x"}}))
}

func TestMemberMatches(t *testing.T) {
	t.Parallel()

	member := &schemas.FieldDescriptor{LabelText: "Remote", AriaText: "Remote work", CurrentValue: "remote-1"}

	assert.True(t, memberMatches(member, []string{"remote-1"}), "value attribute match")
	assert.True(t, memberMatches(member, []string{"remote"}), "case-insensitive label match")
	assert.True(t, memberMatches(member, []string{"REMOTE WORK"}), "aria text match")
	assert.False(t, memberMatches(member, []string{"onsite"}))
	assert.False(t, memberMatches(member, []string{""}), "empty values never match")
}
