// File: internal/form/synonyms.go
package form

// Synonym maps one label phrase to a canonical field key. Tables are ordered:
// the first phrase found in a field's text wins, so more specific phrases
// must precede the generic ones they contain ("first name" before "name").
type Synonym struct {
	Phrase string
	Key    string
}

// Canonical field keys. These are the semantic identifiers the classifier
// normalizes raw labels to and the profile lookup resolves.
const (
	KeyFirstName   = "first-name"
	KeyLastName    = "last-name"
	KeyFullName    = "full-name"
	KeyEmail       = "email"
	KeyPhone       = "phone"
	KeyLinkedIn    = "linkedin"
	KeyGitHub      = "github"
	KeyPortfolio   = "portfolio"
	KeyWebsite     = "website"
	KeyLocation    = "location"
	KeyCoverLetter = "cover-letter"
	KeyResume      = "resume"
	KeyYearsExp    = "years-experience"
	KeySalary      = "salary"
	KeyNoticePd    = "notice-period"
)

// DefaultSynonyms is the table shipped with the binary, covering the label
// vocabulary observed across common ATS platforms. Ordering matters; see
// Synonym.
func DefaultSynonyms() []Synonym {
	return []Synonym{
		{"first name", KeyFirstName},
		{"given name", KeyFirstName},
		{"forename", KeyFirstName},
		{"last name", KeyLastName},
		{"surname", KeyLastName},
		{"family name", KeyLastName},
		{"full name", KeyFullName},
		{"your name", KeyFullName},
		{"legal name", KeyFullName},

		{"e-mail", KeyEmail},
		{"email", KeyEmail},
		{"phone", KeyPhone},
		{"mobile", KeyPhone},
		{"telephone", KeyPhone},
		{"cell", KeyPhone},

		{"linkedin", KeyLinkedIn},
		{"github", KeyGitHub},
		{"portfolio", KeyPortfolio},
		{"personal site", KeyPortfolio},
		{"personal website", KeyPortfolio},
		{"website", KeyWebsite},

		{"current location", KeyLocation},
		{"location", KeyLocation},
		{"city", KeyLocation},
		{"address", KeyLocation},

		{"cover letter", KeyCoverLetter},
		{"covering letter", KeyCoverLetter},
		{"why do you want to work", KeyCoverLetter},
		{"motivation", KeyCoverLetter},
		{"statement", KeyCoverLetter},

		{"upload resume", KeyResume},
		{"upload cv", KeyResume},
		{"resume", KeyResume},
		{"résumé", KeyResume},
		{"curriculum vitae", KeyResume},
		{"cv", KeyResume},

		{"years of experience", KeyYearsExp},
		{"years experience", KeyYearsExp},
		{"total experience", KeyYearsExp},

		{"expected salary", KeySalary},
		{"salary expectation", KeySalary},
		{"current ctc", KeySalary},
		{"expected ctc", KeySalary},
		{"notice period", KeyNoticePd},

		// Bare "name" and "url" are last so every specific phrase above gets
		// first shot at the text.
		{"name", KeyFullName},
		{"url", KeyWebsite},
	}
}
