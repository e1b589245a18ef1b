// File: internal/form/required.go
package form

import "strings"

// benignAfterMarker lists the runes that disqualify a marker occurrence: a
// doubled asterisk is emphasis markup and "*." is a file-glob or footnote
// lead-in, not a required flag.
const benignAfterMarker = "*."

// RequiredDetector decides whether a control is mandatory. Deliberately
// over-eager: a false positive costs one extra user prompt, a false negative
// leaves a submission silently incomplete. The marker set is policy, not
// contract; ATS platforms that flag required fields with something other
// than an asterisk get their glyph added through configuration.
type RequiredDetector struct {
	markers []string
}

// NewRequiredDetector builds a detector for the given marker glyphs; nil or
// empty means the default asterisk.
func NewRequiredDetector(markers []string) *RequiredDetector {
	if len(markers) == 0 {
		markers = []string{"*"}
	}
	owned := make([]string, len(markers))
	copy(owned, markers)
	return &RequiredDetector{markers: owned}
}

// IsRequired reports whether the control is mandatory: a native required
// attribute, aria-required="true", or a marker glyph in the label that is
// not immediately followed by a benign rune.
func (r *RequiredDetector) IsRequired(attrs map[string]string, label string) bool {
	if _, ok := attrs["required"]; ok {
		return true
	}
	if strings.EqualFold(attrs["aria-required"], "true") {
		return true
	}
	return r.labelHasMarker(label)
}

func (r *RequiredDetector) labelHasMarker(label string) bool {
	for _, marker := range r.markers {
		for rest := label; ; {
			i := strings.Index(rest, marker)
			if i < 0 {
				break
			}
			after := rest[i+len(marker):]
			if after == "" || !strings.ContainsAny(after[:1], benignAfterMarker) {
				return true
			}
			// Step past the benign rune as well, so the closing half of a
			// doubled marker is not re-read as a marker of its own.
			rest = after[1:]
		}
	}
	return false
}
