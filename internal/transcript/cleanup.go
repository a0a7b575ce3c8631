package transcript

import (
	"context"
	"strings"
	"time"

	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/internal/transcript/llmcorrect"
	"go.opentelemetry.io/otel/metric"
)

// CleanerOption is a functional option for configuring a [Cleaner].
type CleanerOption func(*Cleaner)

// WithPhoneticMatcher enables vocabulary snapping before the LLM pass. When
// nil (the default), the phonetic stage is skipped.
func WithPhoneticMatcher(m PhoneticMatcher) CleanerOption {
	return func(c *Cleaner) {
		c.phonetic = m
	}
}

// WithLLMCorrector attaches the LLM cleanup pass. When nil (the default),
// the LLM stage is skipped.
func WithLLMCorrector(corrector *llmcorrect.Corrector) CleanerOption {
	return func(c *Cleaner) {
		c.llm = corrector
	}
}

// WithCleanupTimeout bounds the LLM pass. Zero means no extra deadline
// beyond the caller's context. Default: 30s.
func WithCleanupTimeout(d time.Duration) CleanerOption {
	return func(c *Cleaner) {
		c.timeout = d
	}
}

// WithCleanupMinLength sets the trimmed length below which Clean returns
// its input untouched by every stage. Default: 5.
func WithCleanupMinLength(n int) CleanerOption {
	return func(c *Cleaner) {
		c.minLength = n
	}
}

// WithCleanerMetrics records LLM latency and errors to m.
func WithCleanerMetrics(m *observe.Metrics) CleanerOption {
	return func(c *Cleaner) {
		c.metrics = m
	}
}

// Cleaned is the output of [Cleaner.Clean].
type Cleaned struct {
	// Text is the cleaned transcript. It equals the input when nothing
	// changed or cleanup failed.
	Text string

	// Corrections lists every substitution in stage order.
	Corrections []Correction
}

// Cleaner applies the optional phonetic and LLM cleanup stages in order.
// It is safe for concurrent use.
type Cleaner struct {
	phonetic  PhoneticMatcher
	llm       *llmcorrect.Corrector
	timeout   time.Duration
	minLength int
	metrics   *observe.Metrics
}

// NewCleaner constructs a [Cleaner]. With no options both stages are
// disabled and Clean returns its input.
func NewCleaner(opts ...CleanerOption) *Cleaner {
	c := &Cleaner{timeout: 30 * time.Second, minLength: 5}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Enabled reports whether any stage is configured.
func (c *Cleaner) Enabled() bool {
	return c != nil && (c.phonetic != nil || c.llm != nil)
}

// Clean returns text with recognition errors fixed. vocabulary holds the
// terms the speaker is expected to use, typically the interview's skill
// names. Text shorter than the minimum length skips both stages. Clean
// never fails; an LLM error is logged and the text from the
// previous stage is kept.
func (c *Cleaner) Clean(ctx context.Context, text string, vocabulary []string) Cleaned {
	out := Cleaned{Text: text}
	if !c.Enabled() || text == "" || len(strings.TrimSpace(text)) < c.minLength {
		return out
	}

	if c.phonetic != nil {
		snapped, corrections := Snap(c.phonetic, out.Text, vocabulary)
		out.Text = snapped
		out.Corrections = append(out.Corrections, corrections...)
	}

	if c.llm != nil {
		llmCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			llmCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		cleaned, corrections, err := c.llm.Correct(llmCtx, out.Text, vocabulary)
		if c.metrics != nil {
			c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(observe.Attr("stage", "cleanup")))
		}
		if err != nil {
			observe.Logger(ctx).Warn("transcript cleanup failed, keeping original text", "err", err)
			if c.metrics != nil {
				c.metrics.RecordProviderError(ctx, "llm", "cleanup")
			}
			return out
		}
		out.Text = cleaned
		for _, cr := range corrections {
			out.Corrections = append(out.Corrections, Correction{
				Original:  cr.Original,
				Corrected: cr.Corrected,
				Method:    "llm",
			})
		}
	}

	return out
}
