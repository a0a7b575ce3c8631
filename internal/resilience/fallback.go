package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/skillprobe/internal/observe"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] failed or
// was skipped by an open breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for every entry's breaker. Name is
	// replaced by the entry name.
	CircuitBreaker CircuitBreakerConfig

	// Kind labels the provider family in metrics ("llm", "stt").
	Kind string

	// Metrics records failovers and skipped entries. Optional.
	Metrics *observe.Metrics
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup tries a primary and its fallbacks in registration order.
// Entries must be added before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry tried after all earlier ones.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the entry names in order.
func (fg *FallbackGroup[T]) Names() []string {
	out := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		out[i] = e.name
	}
	return out
}

// States returns each entry's breaker state keyed by entry name.
func (fg *FallbackGroup[T]) States() map[string]State {
	out := make(map[string]State, len(fg.entries))
	for _, e := range fg.entries {
		out[e.name] = e.breaker.State()
	}
	return out
}

// Check reports an error when no entry can currently take a call. It is
// meant for readiness probes.
func (fg *FallbackGroup[T]) Check(context.Context) error {
	open := make([]string, 0, len(fg.entries))
	for _, e := range fg.entries {
		if e.breaker.State() != StateOpen {
			return nil
		}
		open = append(open, e.name)
	}
	return fmt.Errorf("resilience: every %s provider has an open circuit: %s", fg.kind(), strings.Join(open, ", "))
}

// Execute tries fn against each entry until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry until one succeeds and
// returns its result. Entries with an open breaker are skipped. The chain
// stops early once ctx is done; otherwise exhausting it returns an error
// wrapping [ErrAllFailed] and every entry's failure.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		errs []error
		zero R
	)
	log := observe.Logger(ctx)
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(ctx, entry.value)
			return innerErr
		})
		if err == nil {
			if i > 0 {
				log.Info("served by fallback provider", "kind", fg.kind(), "provider", entry.name)
			}
			return result, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			log.Debug("skipping provider with open circuit", "kind", fg.kind(), "provider", entry.name)
			fg.record(ctx, entry.name, "circuit_open")
			continue
		}
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		log.Warn("provider failed, trying next", "kind", fg.kind(), "provider", entry.name, "err", err)
		fg.record(ctx, entry.name, "failover")
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

func (fg *FallbackGroup[T]) kind() string {
	if fg.cfg.Kind == "" {
		return "provider"
	}
	return fg.cfg.Kind
}

func (fg *FallbackGroup[T]) record(ctx context.Context, name, outcome string) {
	if fg.cfg.Metrics != nil {
		fg.cfg.Metrics.RecordProviderError(ctx, name, fg.kind()+"_"+outcome)
	}
}
