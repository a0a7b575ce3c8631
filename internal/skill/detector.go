package skill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/skillprobe/pkg/provider/llm"
)

const detectSystemPrompt = `You are an expert at analyzing blue collar and construction worker interviews.

Your task is to identify which skills from the provided list the candidate has ACTUALLY demonstrated.

A skill counts ONLY when the statement describes actually having done it or currently doing it:
1. Action verbs about their own work: "I operated", "I built", "I installed", "I weld", "I drive"
2. Duration or frequency: "5 years of", "every day", "I've been a carpenter since 2015"
3. Concrete claims: "I know how to", "I can", "I have done"
4. Certifications and licenses they hold: "I have my OSHA 10 card", "I have a CDL"
5. Professional self-identification: "I'm an electrician", "I work as a welder"

A skill does NOT count when the statement only:
- mentions the skill or its keyword ("carpentry sounds interesting")
- expresses a wish or plan to learn it ("I want to learn welding")
- refers to someone else ("my brother drives a forklift")

Construction workers may not use formal terminology, so match on meaning,
not exact wording ("I can drive a forklift" means "Forklift Operation").

Return ONLY a valid JSON array of exact skill names from the list (just the skill, not the category).
If no skills are demonstrated, return: []
Do NOT add explanations or text outside the array.`

// Detector asks an LLM which skills an utterance demonstrates. It is safe
// for concurrent use.
type Detector struct {
	llm         llm.Provider
	temperature float64
}

// DetectorOption configures a [Detector].
type DetectorOption func(*Detector)

// WithDetectorTemperature sets the sampling temperature. Default: 0.1.
func WithDetectorTemperature(temp float64) DetectorOption {
	return func(d *Detector) {
		d.temperature = temp
	}
}

// NewDetector returns a Detector backed by p.
func NewDetector(p llm.Provider, opts ...DetectorOption) *Detector {
	d := &Detector{llm: p, temperature: 0.1}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect returns the canonical names of the skills that text demonstrates.
// Names the model invents are dropped and duplicates collapse. An unparsable
// reply yields an empty result with a nil error; there is no keyword
// fallback. Only transport failures from the provider are returned as errors.
func (d *Detector) Detect(ctx context.Context, text string, skills []Skill) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(skills) == 0 {
		return nil, nil
	}

	reply, err := llm.Generate(ctx, d.llm, buildDetectPrompt(text, skills), detectSystemPrompt, d.temperature)
	if err != nil {
		return nil, fmt.Errorf("skill: detect: %w", err)
	}

	names := ParseStrings(reply)
	if names == nil {
		slog.Debug("skill detection reply not parsable", "reply_len", len(reply))
		return nil, nil
	}
	return canonicalize(names, skills), nil
}

func buildDetectPrompt(text string, skills []Skill) string {
	var sb strings.Builder
	sb.WriteString("AVAILABLE SKILLS TO DETECT:\n")
	for _, s := range skills {
		sb.WriteString("- ")
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("\nCANDIDATE'S STATEMENT:\n\"")
	sb.WriteString(text)
	sb.WriteString("\"\n\nBased on this statement, which skills from the list above does the candidate actually have?\n")
	sb.WriteString("Return JSON array with exact skill names only:")
	return sb.String()
}

// canonicalize keeps the names that match a skill (case-insensitive, trimmed)
// and returns them in canonical spelling without duplicates. A model that
// echoes the "Name (Category)" form is matched on the name part.
func canonicalize(names []string, skills []Skill) []string {
	byKey := make(map[string]string, len(skills))
	for _, s := range skills {
		byKey[key(s.Name)] = s.Name
		byKey[key(s.String())] = s.Name
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		canon, ok := byKey[key(n)]
		if !ok {
			continue
		}
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		out = append(out, canon)
	}
	return out
}
