package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestParseVerbose(t *testing.T) {
	t.Parallel()

	res, err := parseVerbose([]byte(`{
		"task": "transcribe",
		"language": "spanish",
		"duration": 3.1,
		"text": "Manejo montacargas desde hace tres años.",
		"segments": [
			{"id": 0, "start": 0.0, "end": 1.4, "text": " Manejo montacargas"},
			{"id": 1, "start": 1.4, "end": 3.1, "text": " desde hace tres años."}
		]
	}`), "")
	if err != nil {
		t.Fatalf("parseVerbose: %v", err)
	}
	if res.Language != "es" {
		t.Errorf("language: got %q, want es", res.Language)
	}
	if len(res.Segments) != 2 || res.Segments[1].End != 3100*time.Millisecond {
		t.Errorf("segments: %+v", res.Segments)
	}
	if res.Text() != "Manejo montacargas desde hace tres años." {
		t.Errorf("text: %q", res.Text())
	}
}

func TestParseVerbose_FlatTextAndForcedLanguage(t *testing.T) {
	t.Parallel()

	res, err := parseVerbose([]byte(`{"text":"hello"}`), "en")
	if err != nil {
		t.Fatalf("parseVerbose: %v", err)
	}
	if res.Language != "en" || res.Text() != "hello" {
		t.Errorf("got language=%q text=%q", res.Language, res.Text())
	}

	if _, err := parseVerbose([]byte("not json"), ""); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNamedFile_ContentType(t *testing.T) {
	t.Parallel()
	if got := (namedFile{name: "a.webm"}).ContentType(); got != "audio/webm" {
		t.Errorf("webm: got %q", got)
	}
	if got := (namedFile{name: "audio.wav"}).ContentType(); got != "audio/wav" {
		t.Errorf("wav: got %q", got)
	}
}

func TestTranscribe_AgainstFakeServer(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		gotModel string
		gotFmt   string
		gotLang  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		gotModel = r.FormValue("model")
		gotFmt = r.FormValue("response_format")
		gotLang = r.FormValue("language")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"language":"english","text":"I weld.","segments":[{"start":0,"end":1,"text":"I weld."}]}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Transcribe(context.Background(), stt.Request{Samples: make([]float32, 1600), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text() != "I weld." || res.Language != "en" {
		t.Errorf("got text=%q language=%q", res.Text(), res.Language)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotModel != "whisper-1" {
		t.Errorf("model: got %q", gotModel)
	}
	if gotFmt != "verbose_json" {
		t.Errorf("response_format: got %q", gotFmt)
	}
	if gotLang != "" {
		t.Errorf("language should be omitted for auto-detect, got %q", gotLang)
	}
}
