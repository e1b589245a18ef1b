package schemas

import "strings"

// -- Job Posting Schemas --

// JobPosting is the scraped content of the landing page, feeding letter
// drafting and the run artifacts.
type JobPosting struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Company  string `json:"company,omitempty"`
	Location string `json:"location,omitempty"`

	// Markdown is the sanitized posting body converted to markdown.
	Markdown string `json:"markdown,omitempty"`
}

// Text renders the posting as prompt input. The URL is always included so a
// failed capture still leaves the drafter something to work with.
func (j *JobPosting) Text() string {
	var b strings.Builder
	if j.URL != "" {
		b.WriteString("URL: " + j.URL + "\n")
	}
	if j.Title != "" {
		b.WriteString("TITLE: " + j.Title + "\n")
	}
	if j.Company != "" {
		b.WriteString("COMPANY: " + j.Company + "\n")
	}
	if j.Location != "" {
		b.WriteString("LOCATION: " + j.Location + "\n")
	}
	b.WriteString(j.Markdown)
	return strings.TrimSpace(b.String())
}
