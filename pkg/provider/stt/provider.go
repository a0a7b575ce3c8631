// Package stt defines the Provider interface for Speech-to-Text backends.
//
// SkillProbe transcribes bounded pieces of audio: a segmenter chunk from a
// live stream, or a whole uploaded answer. Every backend therefore exposes a
// single blocking Transcribe call that returns the recognised segments plus
// the language the engine detected.
//
// Callers leave Request.Language empty to ask for automatic language
// detection and set it to force a language.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/skillprobe/pkg/audio"
)

// ErrNoAudio is returned when a Request carries neither encoded audio nor samples.
var ErrNoAudio = errors.New("stt: request has no audio")

// Request is one transcription job. Exactly one of Audio or Samples is
// normally set; backends convert between the two when needed.
type Request struct {
	// Audio is an encoded audio file (WAV, WebM, MP3, ...).
	Audio []byte

	// Filename is a hint for the container format of Audio, e.g. "answer.webm".
	// Defaults to "audio.wav".
	Filename string

	// Samples are mono float samples normalised to [-1, 1].
	Samples []float32

	// SampleRate of Samples in Hz.
	SampleRate int

	// Language is an ISO 639-1 code to force, or empty for auto-detection.
	Language string
}

// Segment is one recognised span of speech.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Result is the outcome of one Transcribe call.
type Result struct {
	// Segments in stream order.
	Segments []Segment

	// Language is the detected (or forced) ISO 639-1 language code.
	Language string

	// LanguageProbability is the engine's confidence in Language (0–1).
	// Zero when the backend does not report it.
	LanguageProbability float64
}

// Text joins all segment texts with single spaces and trims the result.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in req. It must honour ctx cancellation.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// WAVBytes returns req's audio as an encoded file and its filename, encoding
// Samples as 16-bit WAV when no encoded audio was supplied.
func (req Request) WAVBytes() ([]byte, string, error) {
	if len(req.Audio) > 0 {
		name := req.Filename
		if name == "" {
			name = "audio.wav"
		}
		return req.Audio, name, nil
	}
	if len(req.Samples) > 0 {
		rate := req.SampleRate
		if rate <= 0 {
			rate = 16000
		}
		return audio.EncodeWAVFloat(req.Samples, rate), "audio.wav", nil
	}
	return nil, "", ErrNoAudio
}

// MonoSamples returns req's audio as mono float samples at sampleRate,
// decoding WAV input when only encoded audio was supplied. Other containers
// are not decodable here and yield an error.
func (req Request) MonoSamples(sampleRate int) ([]float32, error) {
	if len(req.Samples) > 0 {
		return audio.Resample(req.Samples, req.SampleRate, sampleRate), nil
	}
	if len(req.Audio) == 0 {
		return nil, ErrNoAudio
	}
	frame, err := audio.DecodeWAV(req.Audio)
	if err != nil {
		return nil, err
	}
	return audio.Resample(audio.PCMToFloat32Mono(frame.Data, frame.Channels), frame.SampleRate, sampleRate), nil
}
