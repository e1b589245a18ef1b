// File: internal/form/scanner_test.go
package form

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
	"github.com/xkilldash9x/applypilot/internal/mocks"
)

func newTestScanner(t *testing.T, page Page, cfg config.FormConfig) *Scanner {
	t.Helper()
	return NewScanner(page, cfg, zaptest.NewLogger(t))
}

// TestScanner_Describe verifies raw scan records become fully normalized
// descriptors: widget kind, classification, required detection, and options.
func TestScanner_Describe(t *testing.T) {
	t.Parallel()

	raws := []rawField{
		{Handle: "ap-1", Tag: "input", Type: "text", Name: "first_name", Label: "First Name *"},
		{Handle: "ap-2", Tag: "input", Type: "email", Label: "Email", RequiredAttr: true},
		{Handle: "ap-3", Tag: "select", Name: "country", Label: "Country", Options: []schemas.Option{
			{Value: "us", Label: "United States"},
			{Value: "de", Label: "Germany"},
		}, Value: "us"},
		{Handle: "ap-4", Tag: "textarea", Label: "Why do you want to work here?", AriaRequired: "true"},
		{Handle: "ap-5", Tag: "input", Type: "checkbox", Name: "tos", Label: "I agree to the terms", Group: "tos", Checked: true, Value: "on"},
		{Handle: "ap-6", Tag: "input", Type: "radio", Name: "remote", Label: "Remote", Group: "remote", Value: "yes"},
		{Handle: "ap-7", Tag: "input", Type: "file", Label: "Upload Resume"},
		{Handle: "ap-8", Tag: "div", Role: "combobox", Aria: "Notice period", Synthetic: true},
		{Handle: "ap-9", Tag: "input", Type: "text", Label: "T-shirt size", Options: []schemas.Option{
			{Value: "S", Label: "S"}, {Value: "M", Label: "M"},
		}},
	}

	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, out any) error {
			return mocks.WriteJSON(out, raws)
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 1})

	fields, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, len(raws))

	byHandle := make(map[string]schemas.FieldDescriptor, len(fields))
	for _, d := range fields {
		assert.Equal(t, "top", d.FrameID)
		byHandle[d.Handle] = d
	}

	first := byHandle["ap-1"]
	assert.Equal(t, schemas.WidgetTextInput, first.Kind)
	assert.Equal(t, KeyFirstName, first.CanonicalKey)
	assert.True(t, first.Required, "label asterisk marks the field required")

	email := byHandle["ap-2"]
	assert.Equal(t, KeyEmail, email.CanonicalKey)
	assert.True(t, email.Required, "native required attribute")

	country := byHandle["ap-3"]
	assert.Equal(t, schemas.WidgetNativeSelect, country.Kind)
	assert.Equal(t, "us", country.CurrentValue)
	assert.Len(t, country.Options, 2)

	letter := byHandle["ap-4"]
	assert.Equal(t, schemas.WidgetTextArea, letter.Kind)
	assert.Equal(t, KeyCoverLetter, letter.CanonicalKey)
	assert.True(t, letter.Required, "aria-required")

	tos := byHandle["ap-5"]
	assert.Equal(t, schemas.WidgetCheckbox, tos.Kind)
	assert.Equal(t, "tos", tos.GroupID)
	assert.True(t, tos.Checked)

	assert.Equal(t, schemas.WidgetRadio, byHandle["ap-6"].Kind)
	assert.Equal(t, schemas.WidgetFileUpload, byHandle["ap-7"].Kind)

	combo := byHandle["ap-8"]
	assert.Equal(t, schemas.WidgetSyntheticCombobox, combo.Kind)
	assert.Equal(t, KeyNoticePd, combo.CanonicalKey)

	// A text input backed by a datalist is treated as a constrained choice.
	assert.Equal(t, schemas.WidgetNativeSelect, byHandle["ap-9"].Kind)
}

// TestScanner_FrameOrdering pins descriptor order: top frame first, the other
// execution roots in sorted order.
func TestScanner_FrameOrdering(t *testing.T) {
	t.Parallel()

	page := &mocks.Page{
		ExecutionRootsFunc: func(context.Context) ([]string, error) {
			return []string{"top", "frame-z", "frame-a"}, nil
		},
		EvalFunc: func(_ context.Context, root, _ string, out any) error {
			return mocks.WriteJSON(out, []rawField{
				{Handle: "in-" + root, Tag: "input", Type: "text", Label: root},
			})
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 1})

	fields, err := s.Scan(context.Background())
	require.NoError(t, err)

	got := make([]string, len(fields))
	for i, d := range fields {
		got[i] = d.FrameID
	}
	want := []string{"top", "frame-a", "frame-z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frame order mismatch (-want +got):\n%s", diff)
	}
}

// TestScanner_UnreachableChildFrame verifies that a child frame failing
// mid-scan only drops that frame's controls.
func TestScanner_UnreachableChildFrame(t *testing.T) {
	t.Parallel()

	page := &mocks.Page{
		ExecutionRootsFunc: func(context.Context) ([]string, error) {
			return []string{"top", "frame-detached"}, nil
		},
		EvalFunc: func(_ context.Context, root, _ string, out any) error {
			if root == "frame-detached" {
				return errors.New("target detached")
			}
			return mocks.WriteJSON(out, []rawField{
				{Handle: "ap-1", Tag: "input", Type: "text", Label: "Email"},
			})
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 1})

	fields, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "top", fields[0].FrameID)
}

func TestScanner_TopFrameFailure(t *testing.T) {
	t.Parallel()

	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, _ any) error {
			return errors.New("context destroyed")
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 1})

	_, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScanFailed)
}

func TestScanner_RootEnumerationFailure(t *testing.T) {
	t.Parallel()

	page := &mocks.Page{
		ExecutionRootsFunc: func(context.Context) ([]string, error) {
			return nil, errors.New("no targets")
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 1})

	_, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrScanFailed)
}

// TestScanner_RetriesUntilControlsAppear covers late-rendering forms: the
// first pass sees nothing, the page settles, the second pass finds the form.
func TestScanner_RetriesUntilControlsAppear(t *testing.T) {
	t.Parallel()

	var calls int
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, out any) error {
			calls++
			if calls == 1 {
				return mocks.WriteJSON(out, []rawField{})
			}
			return mocks.WriteJSON(out, []rawField{
				{Handle: "ap-1", Tag: "input", Type: "text", Label: "Email"},
			})
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 3, ScanSettle: time.Millisecond})

	fields, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, fields, 1)
	assert.Equal(t, 2, calls, "scan should stop on the first non-empty pass")
}

func TestScanner_EmptyPageIsNotAnError(t *testing.T) {
	t.Parallel()

	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, out any) error {
			return mocks.WriteJSON(out, []rawField{})
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 2, ScanSettle: time.Millisecond})

	fields, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestWidgetKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  rawField
		want schemas.WidgetKind
	}{
		{"synthetic wins over tag", rawField{Tag: "div", Synthetic: true}, schemas.WidgetSyntheticCombobox},
		{"select", rawField{Tag: "select"}, schemas.WidgetNativeSelect},
		{"textarea", rawField{Tag: "textarea"}, schemas.WidgetTextArea},
		{"checkbox", rawField{Tag: "input", Type: "checkbox"}, schemas.WidgetCheckbox},
		{"radio", rawField{Tag: "input", Type: "radio"}, schemas.WidgetRadio},
		{"file", rawField{Tag: "input", Type: "file"}, schemas.WidgetFileUpload},
		{"datalist input", rawField{Tag: "input", Type: "text", Options: []schemas.Option{{Value: "a", Label: "a"}}}, schemas.WidgetNativeSelect},
		{"plain text", rawField{Tag: "input", Type: "text"}, schemas.WidgetTextInput},
		{"typeless input", rawField{Tag: "input"}, schemas.WidgetTextInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, widgetKind(tt.raw))
		})
	}
}

// TestScanner_HandleStability documents the contract that matters to the
// recheck loop: the same element reports the same handle across scans.
func TestScanner_HandleStability(t *testing.T) {
	t.Parallel()

	scan := func() []rawField {
		return []rawField{{Handle: "ap-7", Tag: "input", Type: "text", Label: "Email", Value: "a@b.c"}}
	}
	page := &mocks.Page{
		EvalFunc: func(_ context.Context, _, _ string, out any) error {
			return mocks.WriteJSON(out, scan())
		},
	}
	s := newTestScanner(t, page, config.FormConfig{ScanAttempts: 1})

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Identity(), second[0].Identity())
	assert.Equal(t, fmt.Sprintf("top/%s", first[0].Handle), first[0].Identity().String())
}
