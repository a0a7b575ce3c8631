package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/skillprobe/pkg/audio"
)

const (
	testRate  = 16000
	blockSize = testRate / 10 // 100 ms capture block
)

// toneBlock returns one 100 ms block of a sine wave at the given amplitude.
func toneBlock(amplitude float32) []float32 {
	out := make([]float32, blockSize)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(2*math.Pi*440*float64(i)/testRate))
	}
	return out
}

func silenceBlock() []float32 { return make([]float32, blockSize) }

func newSegmenter(t *testing.T, cfg audio.SegmenterConfig) *audio.Segmenter {
	t.Helper()
	s, err := audio.NewSegmenter(cfg)
	if err != nil {
		t.Fatalf("NewSegmenter: %v", err)
	}
	return s
}

// feed pushes blocks until the first flush and returns the stream time at
// which it happened along with the chunk.
func feed(s *audio.Segmenter, blocks [][]float32) (time.Duration, audio.Chunk, bool) {
	for i, b := range blocks {
		if c, ok := s.PushSamples(b); ok {
			return time.Duration(i+1) * 100 * time.Millisecond, c, true
		}
	}
	return 0, audio.Chunk{}, false
}

func repeat(block func() []float32, n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = block()
	}
	return out
}

func TestSegmenter_FlushOnSilenceAfterSpeech(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{SampleRate: testRate, ChunkDuration: 4 * time.Second})

	blocks := append(repeat(func() []float32 { return toneBlock(0.2) }, 25), repeat(silenceBlock, 9)...)
	at, chunk, ok := feed(s, blocks)
	if !ok {
		t.Fatal("expected a flush")
	}
	if at != 3300*time.Millisecond {
		t.Errorf("flush at %s, want 3.3s", at)
	}
	if chunk.Reason != audio.FlushSilence {
		t.Errorf("reason: got %s, want silence", chunk.Reason)
	}
	if chunk.Duration != 3300*time.Millisecond {
		t.Errorf("chunk duration: got %s, want 3.3s", chunk.Duration)
	}
}

func TestSegmenter_HardCapOnContinuousSpeech(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{SampleRate: testRate, ChunkDuration: 10 * time.Second})

	at, chunk, ok := feed(s, repeat(func() []float32 { return toneBlock(0.2) }, 60))
	if !ok {
		t.Fatal("expected a flush")
	}
	if at != 5*time.Second {
		t.Errorf("flush at %s, want 5s", at)
	}
	if chunk.Reason != audio.FlushMaxDuration {
		t.Errorf("reason: got %s, want max_duration", chunk.Reason)
	}
}

func TestSegmenter_ChunkDurationDefault(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{})
	if got := s.Config().ChunkDuration; got != 3*time.Second {
		t.Fatalf("default chunk duration: got %s, want 3s", got)
	}

	at, chunk, ok := feed(s, repeat(func() []float32 { return toneBlock(0.2) }, 40))
	if !ok {
		t.Fatal("expected a flush")
	}
	if at != 3*time.Second {
		t.Errorf("flush at %s, want 3s", at)
	}
	if chunk.Reason != audio.FlushChunkDuration {
		t.Errorf("reason: got %s, want chunk_duration", chunk.Reason)
	}
}

func TestSegmenter_DiscardsLowEnergyChunk(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{SampleRate: testRate})

	// Pure silence reaches the chunk duration but is dropped.
	if _, _, ok := feed(s, repeat(silenceBlock, 30)); ok {
		t.Fatal("silent chunk must not be emitted")
	}
	emitted, discarded := s.Stats()
	if emitted != 0 || discarded != 1 {
		t.Errorf("stats: emitted=%d discarded=%d, want 0/1", emitted, discarded)
	}
	if s.Buffered() != 0 {
		t.Errorf("buffer should be reset after discard, holds %s", s.Buffered())
	}
}

func TestSegmenter_QuietButAboveFloorIsEmitted(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{SampleRate: testRate})

	// RMS of a sine is amplitude/sqrt(2): 0.007 → ~0.005, below the speech
	// threshold but above the 0.003 floor.
	_, chunk, ok := feed(s, repeat(func() []float32 { return toneBlock(0.007) }, 30))
	if !ok {
		t.Fatal("expected chunk above the energy floor to be emitted")
	}
	if chunk.Energy <= 0.003 {
		t.Errorf("energy %g should exceed floor", chunk.Energy)
	}
}

func TestSegmenter_EmptyBufferNeverFlushes(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{})
	if _, ok := s.Flush(); ok {
		t.Error("Flush on empty buffer must not emit")
	}
	if _, ok := s.PushSamples(nil); ok {
		t.Error("empty push must not emit")
	}
	_, discarded := s.Stats()
	if discarded != 0 {
		t.Errorf("empty flush must not count as discard, got %d", discarded)
	}
}

func TestSegmenter_StateResetsAfterFlush(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{SampleRate: testRate, ChunkDuration: 4 * time.Second})

	blocks := append(repeat(func() []float32 { return toneBlock(0.2) }, 5), repeat(silenceBlock, 8)...)
	if _, _, ok := feed(s, blocks); !ok {
		t.Fatal("expected first flush on silence")
	}

	// Silence alone after the flush must not trigger the silence rule again.
	for i := range 20 {
		if _, ok := s.PushSamples(silenceBlock()); ok {
			t.Fatalf("unexpected flush after %d silent blocks", i+1)
		}
	}
}

func TestSegmenter_ForcedFlush(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{SampleRate: testRate})
	for range 5 {
		s.PushSamples(toneBlock(0.2))
	}
	chunk, ok := s.Flush()
	if !ok {
		t.Fatal("expected forced flush to emit buffered speech")
	}
	if chunk.Reason != audio.FlushForced || chunk.Duration != 500*time.Millisecond {
		t.Errorf("got reason=%s duration=%s", chunk.Reason, chunk.Duration)
	}
	if chunk.Start != 0 {
		t.Errorf("start: got %s, want 0", chunk.Start)
	}

	s.PushSamples(toneBlock(0.2))
	next, ok := s.Flush()
	if !ok || next.Start != 500*time.Millisecond {
		t.Errorf("second chunk start: got %s, want 500ms", next.Start)
	}
}

func TestSegmenter_PushDownmixesStereo(t *testing.T) {
	t.Parallel()

	s := newSegmenter(t, audio.SegmenterConfig{SampleRate: testRate})

	// Left and right cancel out, so the mono mix is silent.
	pcm := make([]int16, 0, blockSize*2)
	for range blockSize {
		pcm = append(pcm, 8000, -8000)
	}
	frame := audio.AudioFrame{Data: int16Bytes(pcm), SampleRate: testRate, Channels: 2}
	for range 30 {
		if _, ok := s.Push(frame); ok {
			t.Fatal("cancelled stereo should be treated as silence")
		}
	}
	if _, discarded := s.Stats(); discarded != 1 {
		t.Errorf("discarded: got %d, want 1", discarded)
	}
}

func TestSegmenterConfig_Validate(t *testing.T) {
	t.Parallel()

	if _, err := audio.NewSegmenter(audio.SegmenterConfig{SilenceThreshold: 2}); err == nil {
		t.Error("expected error for threshold >= 1")
	}
	if _, err := audio.NewSegmenter(audio.SegmenterConfig{SampleRate: -1}); err == nil {
		t.Error("expected error for negative sample rate")
	}
}
