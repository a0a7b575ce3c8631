package whisper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
	"github.com/MrWong99/skillprobe/pkg/provider/stt/whisper"
)

// inferenceRecord captures the form fields of one /inference request.
type inferenceRecord struct {
	language       string
	responseFormat string
	model          string
	filename       string
	fileSize       int
}

// newMockServer creates a test server that answers POST /inference with body
// and records each request's form fields.
func newMockServer(t *testing.T, body any, status int) (*httptest.Server, func() []inferenceRecord) {
	t.Helper()
	var (
		mu      sync.Mutex
		records []inferenceRecord
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec := inferenceRecord{
			language:       r.FormValue("language"),
			responseFormat: r.FormValue("response_format"),
			model:          r.FormValue("model"),
		}
		if f, hdr, err := r.FormFile("file"); err == nil {
			rec.filename = hdr.Filename
			rec.fileSize = int(hdr.Size)
			f.Close()
		}
		mu.Lock()
		records = append(records, rec)
		mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []inferenceRecord {
		mu.Lock()
		defer mu.Unlock()
		return append([]inferenceRecord(nil), records...)
	}
}

func speechRequest() stt.Request {
	return stt.Request{Samples: make([]float32, 1600), SampleRate: 16000}
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestTranscribe_VerboseJSON(t *testing.T) {
	t.Parallel()

	srv, records := newMockServer(t, map[string]any{
		"text":     " I've operated forklifts daily.",
		"language": "english",
		"segments": []map[string]any{
			{"text": " I've operated", "start": 0.0, "end": 1.2},
			{"text": " forklifts daily.", "start": 1.2, "end": 2.5},
		},
		"detected_language":             "english",
		"detected_language_probability": 0.93,
	}, http.StatusOK)

	p, err := whisper.New(srv.URL+"/", whisper.WithModel("base"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Transcribe(context.Background(), speechRequest())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if res.Language != "en" {
		t.Errorf("language: got %q, want en", res.Language)
	}
	if res.LanguageProbability != 0.93 {
		t.Errorf("probability: got %v, want 0.93", res.LanguageProbability)
	}
	if len(res.Segments) != 2 || res.Segments[1].End != 2500*time.Millisecond {
		t.Errorf("segments: got %+v", res.Segments)
	}
	if got := res.Text(); got != "I've operated forklifts daily." {
		t.Errorf("text: got %q", got)
	}

	rec := records()[0]
	if rec.language != "auto" {
		t.Errorf("language field: got %q, want auto", rec.language)
	}
	if rec.responseFormat != "verbose_json" {
		t.Errorf("response_format: got %q", rec.responseFormat)
	}
	if rec.model != "base" {
		t.Errorf("model: got %q", rec.model)
	}
	if rec.filename != "audio.wav" || rec.fileSize != 44+3200 {
		t.Errorf("file: got %q (%d bytes)", rec.filename, rec.fileSize)
	}
}

func TestTranscribe_ForcedLanguage(t *testing.T) {
	t.Parallel()

	srv, records := newMockServer(t, map[string]any{"text": "hola"}, http.StatusOK)
	p, _ := whisper.New(srv.URL)

	req := speechRequest()
	req.Language = "es"
	res, err := p.Transcribe(context.Background(), req)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if records()[0].language != "es" {
		t.Errorf("language field: got %q, want es", records()[0].language)
	}
	if res.Language != "es" {
		t.Errorf("result language: got %q, want es", res.Language)
	}
	if res.Text() != "hola" {
		t.Errorf("flat text fallback: got %q", res.Text())
	}
}

func TestTranscribe_UploadKeepsFilename(t *testing.T) {
	t.Parallel()

	srv, records := newMockServer(t, map[string]any{"text": ""}, http.StatusOK)
	p, _ := whisper.New(srv.URL)

	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("webm"), Filename: "answer.webm"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := records()[0].filename; got != "answer.webm" {
		t.Errorf("filename: got %q", got)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	srv, _ := newMockServer(t, nil, http.StatusInternalServerError)
	p, _ := whisper.New(srv.URL)

	_, err := p.Transcribe(context.Background(), speechRequest())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected HTTP 500 error, got %v", err)
	}
}

func TestTranscribe_NoAudio(t *testing.T) {
	t.Parallel()

	p, _ := whisper.New("http://127.0.0.1:1")
	if _, err := p.Transcribe(context.Background(), stt.Request{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
