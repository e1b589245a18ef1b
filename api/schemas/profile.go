package schemas

import "strings"

// -- Candidate Profile Schemas --

// ContactProfile is the normalized, read-only candidate record produced by
// the résumé parser. The planner treats it as the first answer source; it is
// never mutated during a run.
type ContactProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`

	Links ProfileLinks `json:"links,omitempty"`

	Summary    string            `json:"summary,omitempty"`
	Skills     []string          `json:"skills,omitempty"`
	Experience []ExperienceEntry `json:"experience,omitempty"`
	Education  []EducationEntry  `json:"education,omitempty"`

	// TotalYearsExperience is a display string ("5", "3.5") because ATS
	// forms disagree on the expected format.
	TotalYearsExperience string `json:"total_years_experience,omitempty"`
}

// ProfileLinks holds the typed URL set résumé parsers commonly recover.
type ProfileLinks struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
	Website   string `json:"website,omitempty"`
}

// ExperienceEntry is one prior role.
type ExperienceEntry struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// EducationEntry is one degree or program.
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

// Name returns the candidate's display name, composing it from the parts when
// the parser did not emit a full name.
func (p *ContactProfile) Name() string {
	if p.FullName != "" {
		return p.FullName
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Lookup resolves a canonical field key to a profile value. The boolean is
// false when the profile has nothing for the key, which sends the planner to
// its next answer source.
func (p *ContactProfile) Lookup(key string) (string, bool) {
	var v string
	switch key {
	case "first-name":
		v = p.FirstName
		if v == "" {
			if parts := strings.Fields(p.FullName); len(parts) > 0 {
				v = parts[0]
			}
		}
	case "last-name":
		v = p.LastName
		if v == "" {
			if parts := strings.Fields(p.FullName); len(parts) > 1 {
				v = parts[len(parts)-1]
			}
		}
	case "full-name":
		v = p.Name()
	case "email":
		v = p.Email
	case "phone":
		v = p.Phone
	case "location":
		v = p.Location
	case "linkedin":
		v = p.Links.LinkedIn
	case "github":
		v = p.Links.GitHub
	case "portfolio", "website":
		v = p.Links.Portfolio
		if v == "" {
			v = p.Links.Website
		}
	case "years-experience":
		v = p.TotalYearsExperience
	default:
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
