package resilience

import (
	"context"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] over a [FallbackGroup] of ASR
// backends.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Group exposes the underlying chain for health checks.
func (f *STTFallback) Group() *FallbackGroup[stt.Provider] { return f.group }

// Transcribe sends req to the first healthy backend. The request carries the
// complete recording, so a retry on the next backend starts from scratch.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p stt.Provider) (*stt.Result, error) {
		return p.Transcribe(ctx, req)
	})
}
