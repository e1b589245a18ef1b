// File: internal/form/classify.go
package form

import "strings"

// Classifier maps raw field text to a canonical semantic key using an
// ordered synonym table. Pure and immutable after construction, so one
// instance is safely shared across scans.
type Classifier struct {
	table []Synonym
}

// NewClassifier builds a classifier over the given table; nil means
// DefaultSynonyms. The table is copied, callers cannot mutate it afterwards.
func NewClassifier(table []Synonym) *Classifier {
	if table == nil {
		table = DefaultSynonyms()
	}
	owned := make([]Synonym, len(table))
	copy(owned, table)
	return &Classifier{table: owned}
}

// Classify resolves the four raw texts of a control to a canonical key. All
// texts are folded into one haystack and matched case-insensitively against
// the table in order; the first phrase found wins, which makes multi-phrase
// ties deterministic. Returns "" when nothing matches; a classification
// miss is never an error, the planner falls through to inference or the
// user instead.
func (c *Classifier) Classify(label, placeholder, name, aria string) string {
	var sb strings.Builder
	for _, s := range []string{label, name, aria, placeholder} {
		if s = strings.TrimSpace(s); s != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return ""
	}

	hay := strings.ToLower(sb.String())
	// Name attributes arrive snake_cased ("first_name"); fold separators to
	// spaces so phrase matching sees them.
	hay = strings.NewReplacer("_", " ", "-", " ").Replace(hay)

	for _, syn := range c.table {
		if strings.Contains(hay, syn.Phrase) {
			return syn.Key
		}
	}
	return ""
}
