package audio

import "time"

// AudioFrame is a single slice of captured audio as it arrives from a client:
// little-endian int16 PCM, possibly multi-channel and at any sample rate.
// Frames are transient; the segmenter consumes and discards them.
type AudioFrame struct {
	// PCM audio data.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for browser capture, 16000 for STT).
	SampleRate int

	// Channels is the interleaved channel count.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / (2 * f.Channels)
	return samplesToDuration(samples, f.SampleRate)
}

// FlushReason records which rule caused the segmenter to close a chunk.
type FlushReason int

const (
	// FlushChunkDuration means the buffer reached the configured chunk duration.
	FlushChunkDuration FlushReason = iota
	// FlushSilence means speech was followed by a long enough pause.
	FlushSilence
	// FlushMaxDuration means the buffer hit the hard cap.
	FlushMaxDuration
	// FlushForced means the caller asked for the remaining buffer (stream end).
	FlushForced
)

func (r FlushReason) String() string {
	switch r {
	case FlushChunkDuration:
		return "chunk_duration"
	case FlushSilence:
		return "silence"
	case FlushMaxDuration:
		return "max_duration"
	case FlushForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Chunk is a contiguous span of mono float audio flushed by the [Segmenter]
// for transcription.
type Chunk struct {
	// Samples are mono, normalised to [-1, 1], at SampleRate.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Start is the stream offset of the first sample.
	Start time.Duration

	// Duration is the length of the chunk.
	Duration time.Duration

	// Energy is the RMS energy of the whole chunk.
	Energy float64

	// Reason is the rule that triggered the flush.
	Reason FlushReason
}

func samplesToDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}
