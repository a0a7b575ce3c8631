package live_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/skillprobe/internal/live"
	"github.com/MrWong99/skillprobe/internal/observe"
	"github.com/MrWong99/skillprobe/pkg/audio"
)

const frameSamples = 320 // 20ms at 16kHz

// frames returns n 20ms mono frames alternating between +amp and -amp.
func frames(n int, amp float32) []audio.AudioFrame {
	out := make([]audio.AudioFrame, n)
	for i := range out {
		s := make([]float32, frameSamples)
		for j := range s {
			if j%2 == 0 {
				s[j] = amp
			} else {
				s[j] = -amp
			}
		}
		out[i] = audio.AudioFrame{Data: audio.Float32ToPCM(s), SampleRate: 16000, Channels: 1}
	}
	return out
}

type collector struct {
	mu     sync.Mutex
	chunks []audio.Chunk
}

func (c *collector) handle(_ context.Context, chunk audio.Chunk) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, chunk)
	return false
}

func (c *collector) all() []audio.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.Chunk(nil), c.chunks...)
}

func capture(t *testing.T, h *live.Harness, fs []audio.AudioFrame) {
	t.Helper()
	for i, f := range fs {
		if !h.Capture(f) {
			t.Fatalf("Capture(%d) = false, want queued", i)
		}
	}
}

func runWithTimeout(t *testing.T, ctx context.Context, h *live.Harness) live.StopReason {
	t.Helper()
	type result struct {
		reason live.StopReason
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := h.Run(ctx)
		done <- result{r, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Run: %v", r.err)
		}
		return r.reason
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return live.StopNone
	}
}

func TestHarness_SilenceBoundaryAndFinalFlush(t *testing.T) {
	t.Parallel()

	var c collector
	h, err := live.New(live.Config{
		QueueSize: 512,
		Segmenter: audio.SegmenterConfig{ChunkDuration: 4 * time.Second},
	}, c.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 2.5s speech, 1s silence, then 0.5s speech left in the buffer at stop.
	capture(t, h, frames(125, 0.1))
	capture(t, h, frames(50, 0))
	capture(t, h, frames(25, 0.1))
	h.Stop()

	if reason := runWithTimeout(t, context.Background(), h); reason != live.StopRequested {
		t.Errorf("reason = %v, want requested", reason)
	}

	got := c.all()
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2", len(got))
	}
	if got[0].Reason != audio.FlushSilence || got[0].Duration != 3300*time.Millisecond {
		t.Errorf("chunk 0 = %v %v, want silence flush at 3.3s", got[0].Reason, got[0].Duration)
	}
	if got[1].Reason != audio.FlushForced || got[1].Start != 3300*time.Millisecond {
		t.Errorf("chunk 1 = %v start %v, want forced flush from 3.3s", got[1].Reason, got[1].Start)
	}
	if got[1].Duration != 700*time.Millisecond {
		t.Errorf("chunk 1 duration = %v, want 700ms", got[1].Duration)
	}
	if h.Chunks() != 2 {
		t.Errorf("Chunks = %d, want 2", h.Chunks())
	}
}

func TestHarness_SkipFinalFlush(t *testing.T) {
	t.Parallel()

	var c collector
	h, err := live.New(live.Config{SkipFinalFlush: true}, c.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	capture(t, h, frames(50, 0.1))
	h.Stop()
	runWithTimeout(t, context.Background(), h)

	if got := c.all(); len(got) != 0 {
		t.Errorf("chunks = %d, want 0 without final flush", len(got))
	}
}

func TestHarness_ProcessesLiveFramesInOrder(t *testing.T) {
	t.Parallel()

	var c collector
	h, err := live.New(live.Config{
		PollInterval: 5 * time.Millisecond,
		Segmenter:    audio.SegmenterConfig{ChunkDuration: time.Second},
	}, c.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	done := make(chan live.StopReason, 1)
	go func() {
		r, _ := h.Run(ctx)
		done <- r
	}()

	// Feed 3s of speech in small bursts so the queue never fills.
	for _, f := range frames(150, 0.1) {
		for !h.Capture(f) {
			time.Sleep(time.Millisecond)
		}
	}
	deadline := time.Now().Add(5 * time.Second)
	for h.Chunks() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Stop()
	<-done

	got := c.all()
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3", len(got))
	}
	for i, ch := range got {
		if want := time.Duration(i) * time.Second; ch.Start != want {
			t.Errorf("chunk %d start = %v, want %v", i, ch.Start, want)
		}
		if ch.Reason != audio.FlushChunkDuration {
			t.Errorf("chunk %d reason = %v, want chunk_duration", i, ch.Reason)
		}
	}
}

func TestHarness_HandlerStops(t *testing.T) {
	t.Parallel()

	var calls int
	h, err := live.New(live.Config{
		QueueSize: 512,
		Segmenter: audio.SegmenterConfig{ChunkDuration: time.Second},
	}, func(context.Context, audio.Chunk) bool {
		calls++
		return true
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	capture(t, h, frames(200, 0.1))

	if reason := runWithTimeout(t, context.Background(), h); reason != live.StopHandler {
		t.Errorf("reason = %v, want handler", reason)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestHarness_Deadline(t *testing.T) {
	t.Parallel()

	var c collector
	h, err := live.New(live.Config{
		Deadline:     50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}, c.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if reason := runWithTimeout(t, context.Background(), h); reason != live.StopDeadline {
		t.Errorf("reason = %v, want deadline", reason)
	}
	if !h.Stopped() {
		t.Error("Stopped = false after deadline")
	}
}

func TestHarness_CancelSkipsFinalFlush(t *testing.T) {
	t.Parallel()

	var c collector
	h, err := live.New(live.Config{Deadline: -1}, c.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	capture(t, h, frames(50, 0.1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if reason := runWithTimeout(t, ctx, h); reason != live.StopCancelled {
		t.Errorf("reason = %v, want cancelled", reason)
	}
	if got := c.all(); len(got) != 0 {
		t.Errorf("chunks = %d, want 0 after cancellation", len(got))
	}
}

func TestHarness_DropsWhenFull(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	var c collector
	h, err := live.New(live.Config{QueueSize: 2, Metrics: m}, c.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var accepted int
	for _, f := range frames(5, 0.1) {
		if h.Capture(f) {
			accepted++
		}
	}
	if accepted != 2 || h.Dropped() != 3 {
		t.Errorf("accepted=%d dropped=%d, want 2 and 3", accepted, h.Dropped())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var dropped int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "skillprobe.live.frames_dropped" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				dropped += dp.Value
			}
		}
	}
	if dropped != 3 {
		t.Errorf("frames_dropped metric = %d, want 3", dropped)
	}

	h.Stop()
	if h.Capture(frames(1, 0.1)[0]) {
		t.Error("Capture after Stop = true, want false")
	}
	if h.Dropped() != 3 {
		t.Errorf("Dropped = %d after stop, want unchanged 3", h.Dropped())
	}
}

func TestHarness_RunTwice(t *testing.T) {
	t.Parallel()

	var c collector
	h, err := live.New(live.Config{}, c.handle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.Stop()
	runWithTimeout(t, context.Background(), h)

	if _, err := h.Run(context.Background()); !errors.Is(err, live.ErrRunning) {
		t.Errorf("second Run err = %v, want ErrRunning", err)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := live.New(live.Config{}, nil); err == nil {
		t.Error("New(nil handler) = nil error")
	}
	_, err := live.New(live.Config{Segmenter: audio.SegmenterConfig{SilenceThreshold: 2}}, func(context.Context, audio.Chunk) bool { return false })
	if err == nil {
		t.Error("New(bad segmenter) = nil error")
	}
}
