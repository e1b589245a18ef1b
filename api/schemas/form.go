package schemas

import "strings"

// -- Form Field Schemas --

// WidgetKind identifies the concrete control style of a discovered form field.
// It is fixed at discovery time and drives binder dispatch.
type WidgetKind string

const (
	WidgetTextInput         WidgetKind = "text-input"
	WidgetTextArea          WidgetKind = "textarea"
	WidgetNativeSelect      WidgetKind = "native-select"
	WidgetSyntheticCombobox WidgetKind = "synthetic-combobox"
	WidgetCheckbox          WidgetKind = "checkbox"
	WidgetRadio             WidgetKind = "radio"
	WidgetFileUpload        WidgetKind = "file-upload"
)

// Option is one selectable entry of a choice-type widget, in render order.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldIdentity addresses one control for re-binding and re-scanning. It is
// the combination of the hosting frame and the scanner-assigned control
// handle; label text is deliberately not part of the identity because labels
// are not unique across a form.
type FieldIdentity struct {
	FrameID string `json:"frame_id"`
	Handle  string `json:"handle"`
}

func (id FieldIdentity) String() string {
	return id.FrameID + "/" + id.Handle
}

// FieldDescriptor captures everything the pipeline knows about one discovered
// control. Descriptors are valid for the duration of a scan; the underlying
// handle survives re-scans as long as the element stays in the DOM.
type FieldDescriptor struct {
	FrameID         string     `json:"frame_id"`
	Handle          string     `json:"handle"`
	Kind            WidgetKind `json:"widget_kind"`
	LabelText       string     `json:"label_text,omitempty"`
	PlaceholderText string     `json:"placeholder_text,omitempty"`
	NameAttribute   string     `json:"name_attribute,omitempty"`
	AriaText        string     `json:"aria_text,omitempty"`

	// CanonicalKey is the semantic identifier assigned by the classifier,
	// empty when no synonym matched.
	CanonicalKey string `json:"canonical_key,omitempty"`
	Required     bool   `json:"is_required"`

	// Options is populated at discovery for native selects and lazily, via
	// the harvester, for synthetic comboboxes. It only ever contains entries
	// actually rendered by the page.
	Options        []Option `json:"options,omitempty"`
	AllowsMultiple bool     `json:"allows_multiple,omitempty"`

	// GroupID links sibling radio/checkbox controls that form one logical
	// question. Empty for standalone controls.
	GroupID string `json:"group_identifier,omitempty"`

	// CurrentValue and Checked capture live control state at scan time, used
	// to skip prefilled fields and to drive the required-field recheck. Not
	// part of the persisted descriptor.
	CurrentValue string `json:"-"`
	Checked      bool   `json:"-"`

	// HarvestFailed marks a synthetic combobox whose menu never yielded
	// options; the planner routes such fields straight to the user.
	HarvestFailed bool `json:"-"`
}

// Identity returns the re-binding address of the descriptor.
func (d *FieldDescriptor) Identity() FieldIdentity {
	return FieldIdentity{FrameID: d.FrameID, Handle: d.Handle}
}

// PlanKey is the key a planning decision is stored under. Grouped
// radio/checkbox controls share one key per frame so a group produces exactly
// one decision; standalone controls key by identity.
func (d *FieldDescriptor) PlanKey() string {
	if d.GroupID != "" && (d.Kind == WidgetRadio || d.Kind == WidgetCheckbox) {
		return d.FrameID + "/group:" + d.GroupID
	}
	return d.Identity().String()
}

// IsChoice reports whether the field only accepts values drawn from a fixed
// option set.
func (d *FieldDescriptor) IsChoice() bool {
	switch d.Kind {
	case WidgetNativeSelect, WidgetSyntheticCombobox, WidgetRadio, WidgetCheckbox:
		return true
	}
	return false
}

// DisplayName returns the best human-readable name for prompts and reports:
// label first, then aria text, placeholder, and finally the raw name
// attribute.
func (d *FieldDescriptor) DisplayName() string {
	for _, s := range []string{d.LabelText, d.AriaText, d.PlaceholderText, d.NameAttribute} {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return "(unlabeled field)"
}

// FindOption locates an option by exact value or exact label, then by
// case-insensitive label match. The boolean reports whether a match exists.
func (d *FieldDescriptor) FindOption(want string) (Option, bool) {
	for _, o := range d.Options {
		if o.Value == want || o.Label == want {
			return o, true
		}
	}
	for _, o := range d.Options {
		if strings.EqualFold(o.Label, want) || strings.EqualFold(o.Value, want) {
			return o, true
		}
	}
	return Option{}, false
}
