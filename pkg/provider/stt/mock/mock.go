// Package mock provides a test double for the stt.Provider interface.
//
// Results are served in order: each Transcribe call pops the next entry of
// Results, and once the queue is empty Result/Err are returned. This makes it
// easy to script the auto-detect call and the forced-language retry
// separately.
//
// Example:
//
//	p := &mock.Provider{Results: []*stt.Result{
//	    {Language: "pt", Segments: []stt.Segment{{Text: "hola"}}},
//	    {Language: "es", Segments: []stt.Segment{{Text: "hola"}}},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// TranscribeFunc, if non-nil, answers every call and takes precedence over
	// the other response fields.
	TranscribeFunc func(ctx context.Context, req stt.Request) (*stt.Result, error)

	// Results is a queue of replies consumed one per call.
	Results []*stt.Result

	// Result is returned once Results is exhausted.
	Result *stt.Result

	// Err, if non-nil, is returned once Results is exhausted.
	Err error

	// TranscribeCalls records every invocation in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted reply.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	fn := p.TranscribeFunc
	if fn == nil && len(p.Results) > 0 {
		r := p.Results[0]
		p.Results = p.Results[1:]
		p.mu.Unlock()
		return r, nil
	}
	res, err := p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return res, err
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
