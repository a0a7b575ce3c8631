package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWAV is returned by [DecodeWAV] when the input is not a RIFF/WAVE
// stream.
var ErrNotWAV = errors.New("audio: not a WAV stream")

// EncodeWAV wraps raw 16-bit little-endian PCM in a canonical 44-byte RIFF
// header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, byteRate)
	_ = binary.Write(buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)

	return buf.Bytes()
}

// EncodeWAVFloat encodes mono float samples as a 16-bit PCM WAV file.
func EncodeWAVFloat(samples []float32, sampleRate int) []byte {
	return EncodeWAV(Float32ToPCM(samples), sampleRate, 1)
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV parses a 16-bit PCM WAV stream and returns the raw interleaved
// PCM data with its format. Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) (AudioFrame, error) {
	if !IsWAV(data) {
		return AudioFrame{}, ErrNotWAV
	}

	var (
		frame     AudioFrame
		haveFmt   bool
		bitsPerSp uint16
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return AudioFrame{}, fmt.Errorf("audio: wav fmt chunk too short (%d bytes)", end-body)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			if format != 1 {
				return AudioFrame{}, fmt.Errorf("audio: unsupported wav format code %d", format)
			}
			frame.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			frame.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bitsPerSp = binary.LittleEndian.Uint16(data[body+14:])
			haveFmt = true
		case "data":
			if !haveFmt {
				return AudioFrame{}, fmt.Errorf("audio: wav data chunk before fmt chunk")
			}
			if bitsPerSp != 16 {
				return AudioFrame{}, fmt.Errorf("audio: unsupported wav bit depth %d", bitsPerSp)
			}
			frame.Data = data[body:end]
			return frame, nil
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}
	return AudioFrame{}, fmt.Errorf("audio: wav stream has no data chunk")
}
