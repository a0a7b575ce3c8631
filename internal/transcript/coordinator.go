package transcript

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

// Defaults for [NewCoordinator].
var (
	DefaultSupportedLanguages = []string{"en", "es"}
	DefaultFallbackLanguage   = "es"
	DefaultTimeout            = 30 * time.Second
)

// CoordinatorOption is a functional option for configuring a [Coordinator].
type CoordinatorOption func(*Coordinator)

// WithSupportedLanguages sets the languages accepted from auto-detection.
// Names or codes are accepted ("English", "en-US", "en").
func WithSupportedLanguages(langs ...string) CoordinatorOption {
	return func(c *Coordinator) {
		c.supported = make(map[string]struct{}, len(langs))
		for _, l := range langs {
			if code := stt.LanguageCode(l); code != "" {
				c.supported[code] = struct{}{}
			}
		}
	}
}

// WithFallbackLanguage sets the language forced on the retry. An empty
// value disables the retry.
func WithFallbackLanguage(lang string) CoordinatorOption {
	return func(c *Coordinator) {
		c.fallback = stt.LanguageCode(lang)
	}
}

// WithTimeout bounds each ASR call. Zero disables the per-call deadline.
func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithProviderName labels metrics with the ASR backend name.
func WithProviderName(name string) CoordinatorOption {
	return func(c *Coordinator) {
		c.name = name
	}
}

// WithMetrics records latency, requests and retries to m.
func WithMetrics(m *observe.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// Transcription is the outcome of [Coordinator.Transcribe].
type Transcription struct {
	// Text is the joined, trimmed transcript. Empty means no speech or a
	// failed call; callers treat both the same.
	Text string

	// Language is the ISO 639-1 code of the transcript, when known.
	Language string

	// LanguageProbability is the engine's confidence in the detected language.
	LanguageProbability float64

	// Retried is true when the fallback language was forced.
	Retried bool

	// Err records the provider failure behind an empty Text. It is
	// informational; Transcribe itself never fails.
	Err error
}

// Coordinator runs the language detection policy around an [stt.Provider].
// It is safe for concurrent use.
type Coordinator struct {
	stt       stt.Provider
	name      string
	supported map[string]struct{}
	fallback  string
	timeout   time.Duration
	metrics   *observe.Metrics
}

// NewCoordinator returns a Coordinator for p with the default policy:
// supported languages en and es, fallback es, 30s timeout per call.
func NewCoordinator(p stt.Provider, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		stt:      p,
		name:     "stt",
		fallback: DefaultFallbackLanguage,
		timeout:  DefaultTimeout,
	}
	WithSupportedLanguages(DefaultSupportedLanguages...)(c)
	for _, o := range opts {
		o(c)
	}
	return c
}

// Supported reports whether lang is in the supported set.
func (c *Coordinator) Supported(lang string) bool {
	_, ok := c.supported[stt.LanguageCode(lang)]
	return ok
}

// Transcribe transcribes req with no language hint (any Language set on req
// is ignored). When the detected language is known and unsupported, the call
// is repeated with the fallback language forced. Provider errors, including
// timeouts, yield an empty transcript with Err set.
func (c *Coordinator) Transcribe(ctx context.Context, req stt.Request) Transcription {
	log := observe.Logger(ctx)

	req.Language = ""
	res, err := c.call(ctx, req)
	if err != nil {
		log.Warn("transcription failed", "provider", c.name, "err", err)
		return Transcription{Err: err}
	}

	out := Transcription{
		Text:                res.Text(),
		Language:            stt.LanguageCode(res.Language),
		LanguageProbability: res.LanguageProbability,
	}

	if out.Language == "" || c.fallback == "" || c.Supported(out.Language) {
		return out
	}

	log.Info("unsupported language detected, retrying with fallback",
		"detected", out.Language,
		"probability", out.LanguageProbability,
		"fallback", c.fallback,
	)
	if c.metrics != nil {
		c.metrics.LanguageRetries.Add(ctx, 1)
	}

	req.Language = c.fallback
	res, err = c.call(ctx, req)
	if err != nil {
		log.Warn("fallback transcription failed", "provider", c.name, "language", c.fallback, "err", err)
		return Transcription{Err: err, Retried: true}
	}
	lang := stt.LanguageCode(res.Language)
	if lang == "" {
		lang = c.fallback
	}
	return Transcription{
		Text:                res.Text(),
		Language:            lang,
		LanguageProbability: res.LanguageProbability,
		Retried:             true,
	}
}

func (c *Coordinator) call(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.stt.Transcribe(ctx, req)
	if c.metrics != nil {
		c.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			kind := "stt"
			if errors.Is(err, context.DeadlineExceeded) {
				kind = "stt_timeout"
			}
			c.metrics.RecordProviderError(ctx, c.name, kind)
		}
		c.metrics.RecordProviderRequest(ctx, c.name, "stt", status)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &stt.Result{}, nil
	}
	return res, nil
}
