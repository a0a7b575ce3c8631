// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] talks to a running whisper-server binary over its REST API
// (POST /inference) and asks for verbose JSON so that segment timings and the
// detected language come back with the text. [NativeProvider] links the
// whisper.cpp library directly through its CGO bindings.
//
// Both leave language detection to whisper ("auto") unless a request forces
// a language.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithModel("base"))
//	res, err := p.Transcribe(ctx, stt.Request{Samples: chunk.Samples, SampleRate: 16000})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

const (
	// autoLanguage asks whisper to detect the spoken language.
	autoLanguage = "auto"

	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage pins a default language for requests that do not force one.
// Leave unset to let whisper auto-detect.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the HTTP client timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// verboseResponse mirrors whisper-server's verbose_json output. Language
// fields carry full names ("english") rather than ISO codes.
type verboseResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
	DetectedLanguage            string  `json:"detected_language"`
	DetectedLanguageProbability float64 `json:"detected_language_probability"`
}

// Transcribe uploads the request audio as a WAV file (or the caller's
// encoded file) and parses the verbose JSON response.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	data, filename, err := req.WAVBytes()
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if lang == "" {
		lang = autoLanguage
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}
	fields := [][2]string{
		{"language", lang},
		{"response_format", "verbose_json"},
		{"temperature", "0.0"},
	}
	if p.model != "" {
		fields = append(fields, [2]string{"model", p.model})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	res := &stt.Result{
		Language:            stt.LanguageCode(vr.DetectedLanguage),
		LanguageProbability: vr.DetectedLanguageProbability,
	}
	if res.Language == "" {
		res.Language = stt.LanguageCode(vr.Language)
	}
	if lang != autoLanguage && res.Language == "" {
		res.Language = lang
	}
	for _, s := range vr.Segments {
		res.Segments = append(res.Segments, stt.Segment{
			Text:  s.Text,
			Start: secondsToDuration(s.Start),
			End:   secondsToDuration(s.End),
		})
	}
	// Servers built without verbose output only return the flat text.
	if len(res.Segments) == 0 && strings.TrimSpace(vr.Text) != "" {
		res.Segments = []stt.Segment{{Text: vr.Text}}
	}
	return res, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
