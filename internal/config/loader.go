package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/skillprobe/internal/skill"
	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

// ValidProviderNames lists the built-in provider names per kind. [Validate]
// warns about names outside this list; they may still be registered by a
// custom build.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"whisper", "whisper-native", "openai", "deepgram"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr       = ":8000"
	DefaultMaxUploadBytes   = 25 << 20
	DefaultShutdownTimeout  = 15 * time.Second
	DefaultInterviewLength  = 5 * time.Minute
	DefaultSessionTTL       = 2 * time.Hour
	DefaultServiceName      = "skillprobe"
	DefaultFallbackLanguage = "es"
	DefaultASRTimeout       = 30 * time.Second
)

// Load reads, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields. Segmenter fields are left zero;
// the segmenter applies its own defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	iv := &cfg.Interview
	if iv.MaxSkills == 0 {
		iv.MaxSkills = skill.DefaultExtractLimit
	}
	if iv.Duration == 0 {
		iv.Duration = DefaultInterviewLength
	}
	if iv.SessionTTL == 0 {
		iv.SessionTTL = DefaultSessionTTL
	}

	tr := &cfg.Transcription
	if len(tr.SupportedLanguages) == 0 {
		tr.SupportedLanguages = []string{"en", "es"}
	}
	if tr.FallbackLanguage == "" {
		tr.FallbackLanguage = DefaultFallbackLanguage
	}
	if tr.Timeout == 0 {
		tr.Timeout = DefaultASRTimeout
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks cfg for coherence and returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		addf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		addf("server.tls requires both cert_file and key_file")
	}
	if cfg.Server.MaxUploadBytes < 0 {
		addf("server.max_upload_bytes must not be negative")
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		addf("providers.llm.name is required")
	}
	if cfg.Providers.STT.Name == "" {
		addf("providers.stt.name is required")
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, e := range cfg.Providers.LLMFallback {
		if e.Name == "" {
			addf("providers.llm_fallback[%d].name is required", i)
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.STTFallback {
		if e.Name == "" {
			addf("providers.stt_fallback[%d].name is required", i)
		}
		validateProviderName("stt", e.Name)
	}
	cb := cfg.Providers.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		addf("providers.circuit_breaker values must not be negative")
	}

	// Interview
	if n := cfg.Interview.MaxSkills; n < 0 || n > skill.MaxSkills {
		addf("interview.max_skills %d is out of range [1, %d]", n, skill.MaxSkills)
	}
	for i, s := range cfg.Interview.DefaultSkills {
		if s.Name == "" {
			addf("interview.default_skills[%d] has no name", i)
		}
	}

	// Segmenter
	seg := cfg.Segmenter
	if seg.SampleRate < 0 || seg.ChunkDuration < 0 || seg.SilenceGap < 0 || seg.MaxChunk < 0 {
		addf("segmenter values must not be negative")
	}
	if seg.ChunkDuration > 0 && seg.MaxChunk > 0 && seg.ChunkDuration > seg.MaxChunk {
		addf("segmenter.chunk_duration %v exceeds segmenter.max_chunk %v", seg.ChunkDuration, seg.MaxChunk)
	}
	if seg.DiscardRatio < 0 || seg.DiscardRatio > 1 {
		addf("segmenter.discard_ratio %.2f is out of range [0, 1]", seg.DiscardRatio)
	}
	if seg.SilenceThreshold < 0 || seg.SilenceThreshold > 1 {
		addf("segmenter.silence_threshold %.3f is out of range [0, 1]", seg.SilenceThreshold)
	}

	// Transcription
	tr := cfg.Transcription
	supported := make([]string, 0, len(tr.SupportedLanguages))
	for i, lang := range tr.SupportedLanguages {
		code := stt.LanguageCode(lang)
		if code == "" {
			addf("transcription.supported_languages[%d] is empty", i)
			continue
		}
		supported = append(supported, code)
	}
	if tr.FallbackLanguage != "" && len(supported) > 0 &&
		!slices.Contains(supported, stt.LanguageCode(tr.FallbackLanguage)) {
		addf("transcription.fallback_language %q is not in supported_languages", tr.FallbackLanguage)
	}
	if tr.Timeout < 0 {
		addf("transcription.timeout must not be negative")
	}

	// Transcript
	for _, th := range []float64{cfg.Transcript.PhoneticThreshold, cfg.Transcript.FuzzyThreshold} {
		if th < 0 || th > 1 {
			addf("transcript thresholds must be within [0, 1], got %.2f", th)
		}
	}
	if len(cfg.Transcript.PhoneticVocabulary) > 0 && !cfg.Transcript.Phonetic {
		slog.Warn("transcript.phonetic_vocabulary is set but transcript.phonetic is disabled")
	}

	// Live
	if cfg.Live.QueueSize < 0 || cfg.Live.PollInterval < 0 {
		addf("live values must not be negative")
	}

	// Telemetry
	if r := cfg.Telemetry.Ratio(); r < 0 || r > 1 {
		addf("telemetry.sample_ratio %.2f is out of range [0, 1]", r)
	}

	if cfg.Archive.PostgresDSN != "" && cfg.Archive.ReportFile != "" {
		slog.Warn("archive.report_file is ignored when archive.postgres_dsn is set")
	}

	return errors.Join(errs...)
}

// validateProviderName warns when name is not a built-in provider of kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a custom provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
