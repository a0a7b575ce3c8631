package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Browser and WebRTC clients send 48 kHz Opus in 20 ms packets.
const (
	OpusSampleRate = 48000
	// opusMaxFrameSize is the largest Opus frame (120 ms) in samples per channel.
	opusMaxFrameSize = OpusSampleRate * 120 / 1000
)

// OpusDecoder decodes a single client's Opus packet stream into PCM frames.
// Decoder state carries across packets, so use one decoder per stream.
type OpusDecoder struct {
	dec      *gopus.Decoder
	channels int
}

// NewOpusDecoder creates a 48 kHz decoder with the given channel count (1 or 2).
func NewOpusDecoder(channels int) (*OpusDecoder, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("audio: opus channels must be 1 or 2, got %d", channels)
	}
	dec, err := gopus.NewDecoder(OpusSampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, channels: channels}, nil
}

// Decode turns one Opus packet into an interleaved PCM frame.
func (d *OpusDecoder) Decode(packet []byte) (AudioFrame, error) {
	pcm, err := d.dec.Decode(packet, opusMaxFrameSize, false)
	if err != nil {
		return AudioFrame{}, fmt.Errorf("audio: opus decode: %w", err)
	}
	return AudioFrame{
		Data:       int16sToBytes(pcm),
		SampleRate: OpusSampleRate,
		Channels:   d.channels,
	}, nil
}

// int16sToBytes converts int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
