package skill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/pkg/provider/llm"
)

const (
	// MaxSkills is the upper bound on skills extracted from a job description.
	MaxSkills = 20

	// DefaultExtractLimit is the cap used when the caller does not give one.
	DefaultExtractLimit = 8
)

// ErrEmptyDescription is returned by [Analyzer.ExtractSkills] for a blank
// job description.
var ErrEmptyDescription = errors.New("skill: empty job description")

const extractSystemPrompt = `You are an expert job analyst and recruiter specializing in blue collar and construction jobs.

TASK:
1. Extract ALL skills explicitly mentioned in the job description
2. Add well-known industry-standard skills commonly required for this type of role
3. Include both technical hands-on skills and soft skills
4. Categorize each skill appropriately

CATEGORIES:
%s
OUTPUT FORMAT:
Return ONLY a valid JSON array with NO additional text or explanation:
[
  {"skill": "Carpentry", "category": "Trade Skill"},
  {"skill": "Forklift Operation", "category": "Equipment Operation"},
  {"skill": "OSHA 10", "category": "Safety & Certification"}
]

IMPORTANT:
- Use specific skill names (e.g., "Power Tool Operation" not just "tools")
- Extract 10-20 skills total
- Return ONLY the JSON array, no markdown, no code blocks, no explanation`

const questionSystemPrompt = `You are an expert construction and blue collar job interviewer.

TASK: Create one natural, conversational question for each skill that:
1. Encourages the candidate to describe their hands-on experience
2. Is simple and straightforward (not overly formal)
3. Asks for real examples from past work

QUESTION TYPES:
- Trade skills: "Tell me about your experience with [skill]."
- Equipment: "Have you operated [skill] before? How long?"
- Safety/Certifications: "Do you have [skill]? When did you get it?"
- Physical abilities: "Are you comfortable with [skill]?"
- Soft skills: "How would you describe your [skill]?"
- Licenses: "Do you currently have a valid [skill]?"

OUTPUT: Return ONLY a valid JSON array with one question per skill, in the same order.
NO markdown, NO code blocks, NO explanation - just the JSON array.`

// FallbackQuestion is the question asked about s when the model provides none.
func FallbackQuestion(s Skill) string {
	return fmt.Sprintf("Can you tell me about your experience with %s?", s.Name)
}

// Analyzer extracts skills from job descriptions and writes interview
// questions.
type Analyzer struct {
	llm         llm.Provider
	temperature float64
}

// NewAnalyzer returns an Analyzer backed by p.
func NewAnalyzer(p llm.Provider) *Analyzer {
	return &Analyzer{llm: p, temperature: 0.3}
}

// ExtractSkills returns up to limit skills required by jobDescription. A
// limit outside (0, MaxSkills] is clamped; zero selects
// [DefaultExtractLimit]. An unusable model reply yields an empty list.
func (a *Analyzer) ExtractSkills(ctx context.Context, jobDescription string, limit int) ([]Skill, error) {
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		return nil, ErrEmptyDescription
	}
	switch {
	case limit <= 0:
		limit = DefaultExtractLimit
	case limit > MaxSkills:
		limit = MaxSkills
	}

	var cats strings.Builder
	for _, c := range Categories {
		cats.WriteString("- ")
		cats.WriteString(c)
		cats.WriteByte('\n')
	}
	prompt := "Job Description:\n" + jobDescription +
		"\n\nExtract and list ALL required skills (both mentioned and commonly expected for this role)."

	reply, err := llm.Generate(ctx, a.llm, prompt, fmt.Sprintf(extractSystemPrompt, cats.String()), a.temperature)
	if err != nil {
		return nil, fmt.Errorf("skill: extract: %w", err)
	}

	skills := ParseSkills(reply)
	if skills == nil {
		observe.Logger(ctx).Warn("skill extraction reply not parsable", "reply_len", len(reply))
		return []Skill{}, nil
	}
	if len(skills) > limit {
		skills = skills[:limit]
	}
	return skills, nil
}

// GenerateQuestions returns exactly one question per skill, in order.
// Positions the model leaves out, or an unusable reply, are filled with
// [FallbackQuestion]. A provider error is returned together with the full
// fallback list so callers can proceed.
func (a *Analyzer) GenerateQuestions(ctx context.Context, skills []Skill) ([]string, error) {
	if len(skills) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Create interview questions for these skills:\n\n")
	for _, s := range skills {
		sb.WriteString("- ")
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("\nReturn a JSON array of questions (one per skill) in the same order:\n[\"question 1\", \"question 2\", ...]")

	reply, err := llm.Generate(ctx, a.llm, sb.String(), questionSystemPrompt, a.temperature)
	if err != nil {
		return fillQuestions(nil, skills), fmt.Errorf("skill: generate questions: %w", err)
	}

	generated := ParseStrings(reply)
	if len(generated) < len(skills) {
		observe.Logger(ctx).Warn("question generation incomplete, using fallback questions",
			"generated", len(generated), "skills", len(skills))
	}
	return fillQuestions(generated, skills), nil
}

func fillQuestions(generated []string, skills []Skill) []string {
	out := make([]string, len(skills))
	for i, s := range skills {
		if i < len(generated) {
			if q := strings.TrimSpace(generated[i]); q != "" {
				out[i] = q
				continue
			}
		}
		out[i] = FallbackQuestion(s)
	}
	return out
}
