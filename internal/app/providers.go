package app

import (
	"fmt"

	"github.com/MrWong99/skillprobe/internal/config"
	"github.com/MrWong99/skillprobe/internal/health"
	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/internal/resilience"
	"github.com/MrWong99/skillprobe/pkg/provider/llm"
	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

// Providers holds the backends the pipeline calls. Nil LLM disables skill
// detection, so [New] rejects it.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider

	// STTName labels ASR metrics. Defaults to "stt".
	STTName string

	// Checks are readiness checks contributed by the providers, such as
	// circuit breaker state.
	Checks []health.Checker
}

// BuildProviders creates the configured primary and fallback backends from
// reg and puts each kind behind a circuit-breaking fallback chain.
func BuildProviders(reg *config.Registry, cfg config.ProvidersConfig, metrics *observe.Metrics) (*Providers, error) {
	breaker := resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.CircuitBreaker.MaxFailures,
		ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
		HalfOpenMax:  cfg.CircuitBreaker.HalfOpenMax,
	}

	primaryLLM, err := reg.CreateLLM(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("app: create llm %q: %w", cfg.LLM.Name, err)
	}
	llmChain := resilience.NewLLMFallback(primaryLLM, cfg.LLM.Name, resilience.FallbackConfig{
		CircuitBreaker: breaker,
		Kind:           "llm",
		Metrics:        metrics,
	})
	for _, e := range cfg.LLMFallback {
		p, err := reg.CreateLLM(e)
		if err != nil {
			return nil, fmt.Errorf("app: create llm fallback %q: %w", e.Name, err)
		}
		llmChain.AddFallback(e.Name, p)
	}

	primarySTT, err := reg.CreateSTT(cfg.STT)
	if err != nil {
		return nil, fmt.Errorf("app: create stt %q: %w", cfg.STT.Name, err)
	}
	sttChain := resilience.NewSTTFallback(primarySTT, cfg.STT.Name, resilience.FallbackConfig{
		CircuitBreaker: breaker,
		Kind:           "stt",
		Metrics:        metrics,
	})
	for _, e := range cfg.STTFallback {
		p, err := reg.CreateSTT(e)
		if err != nil {
			return nil, fmt.Errorf("app: create stt fallback %q: %w", e.Name, err)
		}
		sttChain.AddFallback(e.Name, p)
	}

	return &Providers{
		LLM:     llmChain,
		STT:     sttChain,
		STTName: cfg.STT.Name,
		Checks: []health.Checker{
			{Name: "llm", Check: llmChain.Group().Check},
			{Name: "stt", Check: sttChain.Group().Check},
		},
	}, nil
}

// TelemetryProvider maps the telemetry section onto the OpenTelemetry setup
// for a binary built at version.
func TelemetryProvider(cfg config.TelemetryConfig, version string) observe.ProviderConfig {
	return observe.ProviderConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		SampleRatio:    cfg.Ratio(),
		LogSpans:       cfg.LogSpans,
	}
}
