package audio

import (
	"errors"
	"fmt"
	"time"
)

// SegmenterConfig holds the chunking heuristic parameters.
type SegmenterConfig struct {
	// SampleRate of the samples pushed into the segmenter. Default 16000.
	SampleRate int

	// ChunkDuration flushes the buffer once it holds this much audio.
	// Default 3s.
	ChunkDuration time.Duration

	// SilenceThreshold is the RMS energy (normalised float scale) above which
	// a frame counts as speech. Default 0.01.
	SilenceThreshold float64

	// SilenceGap flushes the buffer when speech has been followed by this much
	// silence. Default 800ms.
	SilenceGap time.Duration

	// MaxChunk is the hard cap on buffered audio. Default 5s.
	MaxChunk time.Duration

	// DiscardRatio scales SilenceThreshold into the energy floor a flushed
	// chunk must exceed to be emitted. Default 0.3.
	DiscardRatio float64
}

// DefaultSegmenterConfig returns the tuned defaults for 16 kHz speech.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SampleRate:       16000,
		ChunkDuration:    3 * time.Second,
		SilenceThreshold: 0.01,
		SilenceGap:       800 * time.Millisecond,
		MaxChunk:         5 * time.Second,
		DiscardRatio:     0.3,
	}
}

func (c *SegmenterConfig) applyDefaults() {
	d := DefaultSegmenterConfig()
	if c.SampleRate == 0 {
		c.SampleRate = d.SampleRate
	}
	if c.ChunkDuration == 0 {
		c.ChunkDuration = d.ChunkDuration
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = d.SilenceThreshold
	}
	if c.SilenceGap == 0 {
		c.SilenceGap = d.SilenceGap
	}
	if c.MaxChunk == 0 {
		c.MaxChunk = d.MaxChunk
	}
	if c.DiscardRatio == 0 {
		c.DiscardRatio = d.DiscardRatio
	}
}

// Validate reports every invalid field.
func (c SegmenterConfig) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.ChunkDuration <= 0 {
		errs = append(errs, fmt.Errorf("chunk duration must be positive, got %s", c.ChunkDuration))
	}
	if c.MaxChunk <= 0 {
		errs = append(errs, fmt.Errorf("max chunk must be positive, got %s", c.MaxChunk))
	}
	if c.SilenceGap <= 0 {
		errs = append(errs, fmt.Errorf("silence gap must be positive, got %s", c.SilenceGap))
	}
	if c.SilenceThreshold <= 0 || c.SilenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("silence threshold must be in (0, 1), got %g", c.SilenceThreshold))
	}
	if c.DiscardRatio < 0 {
		errs = append(errs, fmt.Errorf("discard ratio must not be negative, got %g", c.DiscardRatio))
	}
	return errors.Join(errs...)
}

// Segmenter accumulates mono audio and decides when a chunk is ready for
// transcription. A chunk is flushed when any of these holds:
//
//   - the buffer reaches ChunkDuration
//   - speech was detected and has been followed by SilenceGap of silence
//   - the buffer reaches MaxChunk
//
// A flushed chunk whose overall RMS does not exceed
// DiscardRatio × SilenceThreshold is dropped. The speech/silence state resets
// on every flush either way.
//
// Time is measured on the stream clock (samples consumed / sample rate), so
// the result depends only on the audio, not on when frames arrive.
//
// A Segmenter is owned by a single goroutine.
type Segmenter struct {
	cfg  SegmenterConfig
	norm Normalizer

	buf            []float32
	bufStart       time.Duration
	clock          time.Duration
	consumed       int
	speechDetected bool
	lastSpeech     time.Duration
	silence        time.Duration

	emitted    int
	discarded  int
	lastReason FlushReason
}

// NewSegmenter returns a Segmenter for cfg. Zero fields take their defaults.
func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audio: segmenter config: %w", err)
	}
	return &Segmenter{
		cfg:  cfg,
		norm: Normalizer{SampleRate: cfg.SampleRate},
	}, nil
}

// Config returns the effective configuration.
func (s *Segmenter) Config() SegmenterConfig { return s.cfg }

// Push converts frame to mono at the segmenter's rate and feeds it in. It
// returns the flushed chunk and true when this frame closed one.
func (s *Segmenter) Push(frame AudioFrame) (Chunk, bool) {
	return s.PushSamples(s.norm.Normalize(frame))
}

// PushSamples feeds mono samples already at the segmenter's sample rate.
func (s *Segmenter) PushSamples(samples []float32) (Chunk, bool) {
	if len(samples) == 0 {
		return Chunk{}, false
	}

	if len(s.buf) == 0 {
		s.bufStart = s.clock
	}
	s.buf = append(s.buf, samples...)
	s.consumed += len(samples)
	s.clock = samplesToDuration(s.consumed, s.cfg.SampleRate)

	if RMS(samples) > s.cfg.SilenceThreshold {
		s.speechDetected = true
		s.lastSpeech = s.clock
		s.silence = 0
	} else if s.speechDetected {
		s.silence = s.clock - s.lastSpeech
	}

	buffered := s.Buffered()
	switch {
	case buffered >= s.cfg.MaxChunk:
		return s.flush(FlushMaxDuration)
	case s.speechDetected && s.silence >= s.cfg.SilenceGap:
		return s.flush(FlushSilence)
	case buffered >= s.cfg.ChunkDuration:
		return s.flush(FlushChunkDuration)
	}
	return Chunk{}, false
}

// Flush closes whatever is buffered. It returns false when the buffer is
// empty or the audio falls below the energy floor.
func (s *Segmenter) Flush() (Chunk, bool) {
	return s.flush(FlushForced)
}

// Buffered returns the duration of audio currently held.
func (s *Segmenter) Buffered() time.Duration {
	return samplesToDuration(len(s.buf), s.cfg.SampleRate)
}

// Stats returns how many chunks were emitted and how many were discarded as
// silence.
func (s *Segmenter) Stats() (emitted, discarded int) {
	return s.emitted, s.discarded
}

// LastFlushReason returns the rule behind the most recent flush, emitted or
// discarded.
func (s *Segmenter) LastFlushReason() FlushReason {
	return s.lastReason
}

func (s *Segmenter) flush(reason FlushReason) (Chunk, bool) {
	if len(s.buf) == 0 {
		return Chunk{}, false
	}

	s.lastReason = reason
	samples := s.buf
	start := s.bufStart
	s.buf = nil
	s.speechDetected = false
	s.silence = 0

	energy := RMS(samples)
	if energy <= s.cfg.DiscardRatio*s.cfg.SilenceThreshold {
		s.discarded++
		return Chunk{}, false
	}

	s.emitted++
	return Chunk{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Start:      start,
		Duration:   samplesToDuration(len(samples), s.cfg.SampleRate),
		Energy:     energy,
		Reason:     reason,
	}, true
}
