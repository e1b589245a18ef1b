// File: internal/llm/prompts.go
package llm

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/applypilot/api/schemas"
)

// Prompt text is capped so oversized résumés and job pages cannot blow the
// context window.
const maxPromptChars = 25000

// batchAnswerSystemPrompt drives the one-shot answering pass over the whole
// form. The contract is strict: answers grounded in the résumé only, options
// verbatim, evidence-based Yes/No for skill checks, personal and preference
// questions always skipped so they reach the human instead.
const batchAnswerSystemPrompt = `You are an expert ATS agent filling a job application form from one source of truth: the candidate's RESUME TEXT.

CORE MISSION
- Fill each field ONLY with information grounded in the resume. Never invent facts.
- Return exactly and only the data the question asks for. No labels, units, or trailing punctuation.
- If a field specifies scope in parentheses (e.g. "location (city)"), obey that scope strictly.

OPTIONS POLICY
- If a field lists options, choose ONLY from the provided option labels, verbatim.
- For Yes/No skill questions: answer "Yes" only when the resume shows explicit experience,
  projects, coursework, or achievements with that item or a clear synonym; answer "No" when
  it shows none. Do not skip pure skill-presence checks.
- For ranges or buckets (years of experience), pick the closest matching label; if unclear, skip.
- For multi-select fields, return a list of zero or more labels drawn from the options.

ALWAYS SKIP (personal/preference; these go to the candidate directly)
- Compensation: CTC, current or expected salary, package, negotiable.
- Notice period, last working day, joining time, buyout.
- Work mode (WFH/WFO/hybrid), shifts, relocation, preferred location, travel willingness.
- Gender, age, date of birth, marital status, demographics.
- Visa or immigration status unless explicitly stated in the resume.
- Anything else not clearly stated in the resume that is a preference rather than a fact.

OUTPUT FORMAT
Return ONLY valid JSON with this exact structure, no commentary, no markdown:
{"answers": {"<field_id>": <string | boolean | list-of-strings>}, "skipped": [{"id": "<field_id>", "question": "<original question>", "reason": "<short reason>"}]}`

// resumeParsePrompt turns raw résumé text into the profile JSON shape.
const resumeParsePrompt = `You are an expert resume parser.
Return ONLY a single JSON object (no markdown, no commentary). Do not invent data; use an empty string for values you cannot find. Use snake_case keys. Dates prefer ISO formats (YYYY or YYYY-MM). All URLs must include the https:// scheme.

Required structure:
{
  "first_name": "", "last_name": "", "full_name": "",
  "email": "", "phone": "", "location": "",
  "links": {"linkedin": "", "github": "", "portfolio": "", "website": ""},
  "summary": "",
  "skills": [],
  "experience": [{"title": "", "company": "", "start_date": "", "end_date": "", "summary": ""}],
  "education": [{"institution": "", "degree": "", "field": "", "end_date": ""}],
  "total_years_experience": ""
}`

// buildFieldInferencePrompt asks for one field's value with an UNKNOWN
// sentinel so "no answer" is distinguishable from an empty answer.
func buildFieldInferencePrompt(question string, options []schemas.Option, resumeText string) string {
	var sb strings.Builder
	sb.WriteString("You extract a single job-application answer from a resume.\n")
	fmt.Fprintf(&sb, "Question: %s\n", question)
	if len(options) > 0 {
		sb.WriteString("Allowed answers (reply with one label EXACTLY as written):\n")
		for _, o := range options {
			fmt.Fprintf(&sb, "- %s\n", o.Label)
		}
	}
	sb.WriteString("Resume text:\n-----\n")
	sb.WriteString(clip(resumeText, maxPromptChars))
	sb.WriteString("\n-----\n")
	sb.WriteString("Reply with ONLY the value. If the resume does not answer the question, reply: UNKNOWN")
	return sb.String()
}

// buildBatchAnswerPrompt renders the form fields and résumé for the one-shot
// answering pass.
func buildBatchAnswerPrompt(fields []BatchField, resumeText string) string {
	var sb strings.Builder
	sb.WriteString("=== FORM FIELDS ===\n")
	for _, f := range fields {
		fmt.Fprintf(&sb, "id=%s question=%q", f.ID, f.Question)
		if f.Required {
			sb.WriteString(" (required)")
		}
		if len(f.Options) > 0 {
			labels := make([]string, len(f.Options))
			for i, o := range f.Options {
				labels[i] = o.Label
			}
			fmt.Fprintf(&sb, " options=[%s]", strings.Join(labels, " | "))
		}
		if f.Multiple {
			sb.WriteString(" (multi-select)")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("=== CANDIDATE RESUME TEXT ===\n")
	sb.WriteString(clip(resumeText, maxPromptChars))
	return sb.String()
}

// buildLetterPrompt produces the combined role summary + cover letter
// request. The fixed SUMMARY:/COVER LETTER: markers keep the reply parseable
// without JSON mode, which tends to flatten letter formatting.
func buildLetterPrompt(jobText, resumeText string) string {
	var sb strings.Builder
	sb.WriteString("You are assisting with a job application.\n")
	sb.WriteString("First, write a concise 4-6 bullet summary of the role and company based only on the job page text.\n")
	sb.WriteString("Second, write a short (120-160 words) tailored cover letter aligning the candidate's skills to the role.\n")
	sb.WriteString("Use a confident but warm tone. No placeholders. No markdown.\n")
	sb.WriteString("=== JOB PAGE TEXT ===\n")
	sb.WriteString(clip(jobText, maxPromptChars))
	sb.WriteString("\n=== CANDIDATE RESUME TEXT ===\n")
	sb.WriteString(clip(resumeText, maxPromptChars))
	sb.WriteString("\n=== OUTPUT FORMAT ===\nSUMMARY:\n(bullets)\nCOVER LETTER:\n(paragraphs)")
	return sb.String()
}

func buildResumeParseUserPrompt(resumeText string) string {
	return "Resume text:\n```\n" + clip(resumeText, maxPromptChars) + "\n```"
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
