package config_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/skillprobe/internal/config"
	"github.com/MrWong99/skillprobe/internal/skill"
	"github.com/MrWong99/skillprobe/pkg/provider/llm"
	llmmock "github.com/MrWong99/skillprobe/pkg/provider/llm/mock"
	"github.com/MrWong99/skillprobe/pkg/provider/stt"
	sttmock "github.com/MrWong99/skillprobe/pkg/provider/stt/mock"
)

const minimalYAML = `
providers:
  llm:
    name: ollama
  stt:
    name: whisper
`

const fullYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origins: ["app.example.com"]
  max_upload_bytes: 1048576
  shutdown_timeout: 30s
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  llm_fallback:
    - name: ollama
      base_url: http://localhost:11434
      model: llama3.2
  stt:
    name: whisper
    base_url: http://localhost:9000
    options:
      language: en
  stt_fallback:
    - name: openai
      api_key: sk-test
  circuit_breaker:
    max_failures: 3
    reset_timeout: 10s
    half_open_max: 2
interview:
  max_skills: 5
  duration: 3m
  cleanup_enabled: true
  session_ttl: 30m
  generate_questions: true
  default_skills:
    - Forklift operation
    - skill: Food handling
      category: safety
    - name: Inventory
segmenter:
  chunk_duration: 2s
  silence_threshold: 0.02
  max_chunk: 6s
transcription:
  supported_languages: [en, es, fr]
  fallback_language: en
  timeout: 20s
transcript:
  phonetic: true
  phonetic_vocabulary: [HACCP]
  phonetic_threshold: 0.8
live:
  queue_size: 64
  poll_interval: 50ms
archive:
  postgres_dsn: postgres://localhost/skillprobe
telemetry:
  service_name: skillprobe-test
  sample_ratio: 0.25
  log_spans: true
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM = %+v", cfg.Providers.LLM)
	}
	if len(cfg.Providers.LLMFallback) != 1 || cfg.Providers.LLMFallback[0].Name != "ollama" {
		t.Errorf("LLMFallback = %+v", cfg.Providers.LLMFallback)
	}
	if got := config.OptString(cfg.Providers.STT.Options, "language"); got != "en" {
		t.Errorf("stt option language = %q, want en", got)
	}
	if cfg.Providers.CircuitBreaker.ResetTimeout != 10*time.Second {
		t.Errorf("ResetTimeout = %v, want 10s", cfg.Providers.CircuitBreaker.ResetTimeout)
	}
	if cfg.Interview.Duration != 3*time.Minute {
		t.Errorf("Duration = %v, want 3m", cfg.Interview.Duration)
	}

	wantSkills := config.SkillList{
		{Name: "Forklift operation"},
		{Name: "Food handling", Category: "safety"},
		{Name: "Inventory"},
	}
	if !reflect.DeepEqual(cfg.Interview.DefaultSkills, wantSkills) {
		t.Errorf("DefaultSkills = %+v, want %+v", cfg.Interview.DefaultSkills, wantSkills)
	}

	seg := cfg.Segmenter.Audio()
	if seg.ChunkDuration != 2*time.Second || seg.MaxChunk != 6*time.Second || seg.SilenceThreshold != 0.02 {
		t.Errorf("Segmenter.Audio() = %+v", seg)
	}
	if cfg.Live.PollInterval != 50*time.Millisecond {
		t.Errorf("PollInterval = %v, want 50ms", cfg.Live.PollInterval)
	}
	if cfg.Telemetry.ServiceName != "skillprobe-test" {
		t.Errorf("ServiceName = %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.Ratio() != 0.25 || !cfg.Telemetry.LogSpans {
		t.Errorf("Telemetry = ratio %v log_spans %v", cfg.Telemetry.Ratio(), cfg.Telemetry.LogSpans)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Server.MaxUploadBytes != config.DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Interview.MaxSkills != skill.DefaultExtractLimit {
		t.Errorf("MaxSkills = %d, want %d", cfg.Interview.MaxSkills, skill.DefaultExtractLimit)
	}
	if cfg.Interview.Duration != config.DefaultInterviewLength {
		t.Errorf("Duration = %v", cfg.Interview.Duration)
	}
	if cfg.Interview.SessionTTL != config.DefaultSessionTTL {
		t.Errorf("SessionTTL = %v", cfg.Interview.SessionTTL)
	}
	if !reflect.DeepEqual(cfg.Transcription.SupportedLanguages, []string{"en", "es"}) {
		t.Errorf("SupportedLanguages = %v", cfg.Transcription.SupportedLanguages)
	}
	if cfg.Transcription.FallbackLanguage != config.DefaultFallbackLanguage {
		t.Errorf("FallbackLanguage = %q", cfg.Transcription.FallbackLanguage)
	}
	if cfg.Transcription.Timeout != config.DefaultASRTimeout {
		t.Errorf("Timeout = %v", cfg.Transcription.Timeout)
	}
	if cfg.Telemetry.ServiceName != config.DefaultServiceName {
		t.Errorf("ServiceName = %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.Ratio() != 1 {
		t.Errorf("Ratio() = %v, want 1", cfg.Telemetry.Ratio())
	}
}

func TestLoadFromReader_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
interviw:
  duration: 1m
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "interviw") {
		t.Errorf("error should name the unknown key, got: %v", err)
	}
}

func TestLoadFromReader_BadSkillList(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
interview:
  default_skills: forklift
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for a scalar skill list, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/skillprobe.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error(`"verbose" should be invalid`)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM error = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Create(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterLLM("test-llm", func(e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return &llmmock.Provider{}, nil
	})
	reg.RegisterSTT("test-stt", func(config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "test-llm", Model: "m1"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p == nil {
		t.Fatal("CreateLLM returned nil provider")
	}
	if gotEntry.Model != "m1" {
		t.Errorf("factory saw model %q, want m1", gotEntry.Model)
	}
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "test-stt"}); err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}

	if got := reg.Names("llm"); !reflect.DeepEqual(got, []string{"test-llm"}) {
		t.Errorf("Names(llm) = %v", got)
	}
	if got := reg.Names("tts"); got != nil {
		t.Errorf("Names(tts) = %v, want nil", got)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("bad api key")
	reg.RegisterSTT("broken", func(config.ProviderEntry) (stt.Provider, error) {
		return nil, boom
	})
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "broken"}); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestOptHelpers(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"lang": "en", "temp": 0.5, "n": 3, "bad": "x"}

	if got := config.OptString(opts, "lang"); got != "en" {
		t.Errorf("OptString(lang) = %q", got)
	}
	if got := config.OptString(opts, "temp"); got != "" {
		t.Errorf("OptString(temp) = %q, want empty", got)
	}
	if got := config.OptString(nil, "lang"); got != "" {
		t.Errorf("OptString(nil) = %q, want empty", got)
	}
	if v, ok := config.OptFloat(opts, "temp"); !ok || v != 0.5 {
		t.Errorf("OptFloat(temp) = %v, %v", v, ok)
	}
	if v, ok := config.OptFloat(opts, "n"); !ok || v != 3 {
		t.Errorf("OptFloat(n) = %v, %v", v, ok)
	}
	if _, ok := config.OptFloat(opts, "bad"); ok {
		t.Error("OptFloat(bad) should not be ok")
	}
}
