// Package live runs the real-time side of an interview: frames captured from
// a client are queued, segmented into speech chunks on a single processing
// goroutine, and handed to a chunk handler in stream order.
//
// The capture side never blocks. When the queue is full the frame is dropped
// and counted. Stopping is cooperative: the processing goroutine checks a
// stop flag between frames, so a handler call in flight always completes.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/pkg/audio"
)

// Defaults for [Config].
const (
	DefaultQueueSize    = 256
	DefaultPollInterval = 100 * time.Millisecond
	DefaultDeadline     = 5 * time.Minute
)

// StopReason records why a harness stopped.
type StopReason int

const (
	// StopNone means the harness is still running.
	StopNone StopReason = iota
	// StopRequested means Stop was called.
	StopRequested
	// StopDeadline means the deadline timer fired.
	StopDeadline
	// StopHandler means the chunk handler asked to stop.
	StopHandler
	// StopCancelled means the Run context was cancelled.
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopRequested:
		return "requested"
	case StopDeadline:
		return "deadline"
	case StopHandler:
		return "handler"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrRunning is returned when Run is called twice.
var ErrRunning = errors.New("live: harness already running")

// Handler receives every emitted chunk in stream order. Returning true stops
// the harness after the call.
type Handler func(ctx context.Context, chunk audio.Chunk) (stop bool)

// Config holds harness settings. Zero fields take their defaults.
type Config struct {
	// QueueSize bounds the capture queue in frames. Default 256.
	QueueSize int

	// PollInterval is how long the processing goroutine waits for a frame
	// before re-checking the stop flag. Default 100ms.
	PollInterval time.Duration

	// Deadline stops the harness after this long. Zero selects
	// [DefaultDeadline]; a negative value disables the timer.
	Deadline time.Duration

	// SkipFinalFlush drops buffered audio on stop instead of flushing it.
	SkipFinalFlush bool

	// Segmenter configures the chunking heuristic.
	Segmenter audio.SegmenterConfig

	// Metrics is optional.
	Metrics *observe.Metrics
}

// Harness owns one live stream. Capture may be called from any goroutine;
// the segmenter and handler run on the single processing goroutine.
type Harness struct {
	cfg     Config
	seg     *audio.Segmenter
	handler Handler
	queue   chan audio.AudioFrame

	running atomic.Bool
	stopped atomic.Bool
	dropped atomic.Int64
	chunks  atomic.Int64

	// discarded is the segmenter discard count last seen by deliver. Owned by
	// the processing goroutine.
	discarded int

	reasonOnce sync.Once
	reason     atomic.Int32
}

// New returns a Harness that feeds handler.
func New(cfg Config, handler Handler) (*Harness, error) {
	if handler == nil {
		return nil, errors.New("live: handler is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Deadline == 0 {
		cfg.Deadline = DefaultDeadline
	}
	seg, err := audio.NewSegmenter(cfg.Segmenter)
	if err != nil {
		return nil, fmt.Errorf("live: %w", err)
	}
	return &Harness{
		cfg:     cfg,
		seg:     seg,
		handler: handler,
		queue:   make(chan audio.AudioFrame, cfg.QueueSize),
	}, nil
}

// Capture enqueues frame without blocking. It returns false when the frame
// was dropped because the queue is full or the harness has stopped.
func (h *Harness) Capture(frame audio.AudioFrame) bool {
	if h.stopped.Load() {
		return false
	}
	select {
	case h.queue <- frame:
		return true
	default:
		h.dropped.Add(1)
		if h.cfg.Metrics != nil {
			h.cfg.Metrics.FramesDropped.Add(context.Background(), 1)
		}
		return false
	}
}

// Stop asks the harness to stop. It returns immediately; Run returns once
// the in-flight handler call and the final flush are done.
func (h *Harness) Stop() {
	h.stop(StopRequested)
}

func (h *Harness) stop(r StopReason) {
	h.reasonOnce.Do(func() { h.reason.Store(int32(r)) })
	h.stopped.Store(true)
}

// Stopped reports whether a stop has been requested.
func (h *Harness) Stopped() bool { return h.stopped.Load() }

// Reason returns why the harness stopped, or [StopNone].
func (h *Harness) Reason() StopReason { return StopReason(h.reason.Load()) }

// Dropped returns the number of frames dropped at capture.
func (h *Harness) Dropped() int64 { return h.dropped.Load() }

// Chunks returns the number of chunks delivered to the handler.
func (h *Harness) Chunks() int64 { return h.chunks.Load() }

// Run processes frames until the harness is stopped or ctx is cancelled and
// returns the stop reason. It may be called once.
func (h *Harness) Run(ctx context.Context) (StopReason, error) {
	if !h.running.CompareAndSwap(false, true) {
		return StopNone, ErrRunning
	}

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(done)
		h.process(gctx)
		return nil
	})

	if h.cfg.Deadline > 0 {
		g.Go(func() error {
			timer := time.NewTimer(h.cfg.Deadline)
			defer timer.Stop()
			select {
			case <-timer.C:
				slog.Info("live stream deadline reached", "deadline", h.cfg.Deadline)
				h.stop(StopDeadline)
			case <-done:
			}
			return nil
		})
	}

	err := g.Wait()
	emitted, discarded := h.seg.Stats()
	slog.Debug("live harness stopped",
		"reason", h.Reason(),
		"chunks_emitted", emitted,
		"chunks_discarded", discarded,
		"frames_dropped", h.Dropped(),
	)
	return h.Reason(), err
}

func (h *Harness) process(ctx context.Context) {
	poll := time.NewTimer(h.cfg.PollInterval)
	defer poll.Stop()

	for !h.stopped.Load() {
		poll.Reset(h.cfg.PollInterval)
		select {
		case <-ctx.Done():
			h.stop(StopCancelled)
		case frame := <-h.queue:
			chunk, ok := h.seg.Push(frame)
			h.deliver(ctx, chunk, ok)
		case <-poll.C:
		}
	}

	if h.cfg.SkipFinalFlush || ctx.Err() != nil || h.Reason() == StopHandler {
		return
	}
	// Frames captured before the stop still belong to the stream.
	for drained := false; !drained && h.Reason() != StopHandler; {
		select {
		case frame := <-h.queue:
			chunk, ok := h.seg.Push(frame)
			h.deliver(ctx, chunk, ok)
		default:
			drained = true
		}
	}
	if h.Reason() == StopHandler {
		return
	}
	chunk, ok := h.seg.Flush()
	h.deliver(ctx, chunk, ok)
}

// deliver records the outcome of a segmenter call and hands an emitted chunk
// to the handler. A flush that discarded its audio shows up as a change in
// the segmenter's discard count.
func (h *Harness) deliver(ctx context.Context, chunk audio.Chunk, ok bool) {
	_, discarded := h.seg.Stats()
	if h.cfg.Metrics != nil {
		switch {
		case ok:
			h.cfg.Metrics.RecordChunk(ctx, chunk.Reason.String(), true)
		case discarded > h.discarded:
			h.cfg.Metrics.RecordChunk(ctx, h.seg.LastFlushReason().String(), false)
		}
	}
	h.discarded = discarded
	if !ok {
		return
	}
	h.chunks.Add(1)
	if h.handler(ctx, chunk) {
		h.stop(StopHandler)
	}
}
