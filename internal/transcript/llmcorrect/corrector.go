// Package llmcorrect implements the language-model transcript cleanup stage.
//
// The [Corrector] sends a raw ASR transcript to an [llm.Provider] with a
// conservative system prompt that asks the model to fix recognition errors
// (homophones, missing punctuation, run-on sentences, capitalization,
// misheard technical terms) while preserving meaning, and to return only the
// corrected text.
//
// Cleanup is best effort. Text shorter than the minimum length is returned
// unchanged without a model call, and an empty, unparseable or drifting reply
// leaves the original text in place. Provider errors are returned alongside
// the original text so the caller can log them and carry on.
package llmcorrect

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/skillprobe/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
	defaultMinLength   = 5
	defaultMinOverlap  = 0.4
)

const systemPrompt = `You are a transcription correction assistant.
Your task is to fix any transcription errors in the text while preserving the original meaning.
Common issues to fix:
- Incorrect word recognition (homophones, similar sounding words)
- Missing punctuation
- Run-on sentences
- Capitalization errors
- Technical terms that may have been misheard

Return ONLY the corrected text without any explanation or commentary.`

// vocabularyHint is appended to the system prompt when the caller supplies
// domain terms the speaker is likely to use.
const vocabularyHint = `

The speaker is answering job interview questions. Terms they may use include:
%s`

// Correction is a contiguous span the model changed.
type Correction struct {
	// Original is the span as it appeared in the input transcript.
	Original string

	// Corrected is the span in the cleaned text.
	Corrected string
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Corrector) {
		c.temperature = temp
	}
}

// WithMinLength sets the trimmed length below which text bypasses the
// model. Default: 5.
func WithMinLength(n int) Option {
	return func(c *Corrector) {
		c.minLength = n
	}
}

// WithMinOverlap sets the minimum share of tokens the cleaned text must
// keep from the original, measured on case- and punctuation-folded tokens.
// Replies below it are discarded as drift. Zero disables the check.
// Default: 0.4.
func WithMinOverlap(ratio float64) Option {
	return func(c *Corrector) {
		c.minOverlap = ratio
	}
}

// Corrector uses an [llm.Provider] to clean up ASR transcripts. It is safe
// for concurrent use.
type Corrector struct {
	llm         llm.Provider
	temperature float64
	minLength   int
	minOverlap  float64
}

// New returns a new [Corrector] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{
		llm:         provider,
		temperature: defaultTemperature,
		minLength:   defaultMinLength,
		minOverlap:  defaultMinOverlap,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns the cleaned text and the spans that changed. vocabulary
// lists domain terms (for example the interview's skill names) to bias the
// model towards; it may be nil.
//
// On a provider error Correct returns the original text together with the
// error. Every other failure mode returns the original text and a nil error.
func (c *Corrector) Correct(ctx context.Context, text string, vocabulary []string) (string, []Correction, error) {
	if len(strings.TrimSpace(text)) < c.minLength {
		return text, nil, nil
	}

	sys := systemPrompt
	if len(vocabulary) > 0 {
		sys += fmt.Sprintf(vocabularyHint, strings.Join(vocabulary, ", "))
	}
	user := "Fix any transcription errors in this text:\n\n\"" + text + "\"\n\nCorrected text:"

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: sys,
		Temperature:  c.temperature,
		Messages:     []llm.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return text, nil, fmt.Errorf("llm corrector: complete: %w", err)
	}
	if resp == nil {
		return text, nil, nil
	}

	cleaned := stripReply(resp.Content)
	if cleaned == "" {
		return text, nil, nil
	}
	if c.minOverlap > 0 && overlap(text, cleaned) < c.minOverlap {
		return text, nil, nil
	}
	if cleaned == text {
		return text, nil, nil
	}
	return cleaned, diff(text, cleaned), nil
}

// stripReply removes markdown code fences, a leading "Corrected text:" label
// and one pair of surrounding quotes from a model reply.
func stripReply(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```text", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "Corrected text:"); ok {
		s = strings.TrimSpace(after)
	}
	for _, q := range []string{`"`, "'", "“"} {
		end := q
		if q == "“" {
			end = "”"
		}
		if len(s) >= len(q)+len(end) && strings.HasPrefix(s, q) && strings.HasSuffix(s, end) {
			s = strings.TrimSpace(s[len(q) : len(s)-len(end)])
			break
		}
	}
	return s
}
