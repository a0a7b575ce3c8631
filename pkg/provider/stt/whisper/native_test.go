package whisper_test

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
	"github.com/MrWong99/skillprobe/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := whisper.NewNative(""); err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath_ReturnsError(t *testing.T) {
	if _, err := whisper.NewNative("/nonexistent/path/to/model.bin"); err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestNative_TranscribeTone(t *testing.T) {
	p, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	// A pure tone has no words; the call itself must succeed.
	if _, err := p.Transcribe(context.Background(), stt.Request{Samples: samples, SampleRate: 16000}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestNative_RejectsNonWAVUpload(t *testing.T) {
	p, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("webm bytes")}); err == nil {
		t.Fatal("expected error for non-WAV upload")
	}
}
