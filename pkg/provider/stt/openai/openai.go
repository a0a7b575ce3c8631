// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (whisper-1 and compatible servers).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

const defaultModel = "whisper-1"

// Provider implements stt.Provider using the OpenAI transcription endpoint.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.model == "" {
		cfg.model = defaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// namedFile gives the multipart encoder a filename and content type, which
// the API uses to recognise the container format.
type namedFile struct {
	*bytes.Reader
	name string
}

func (f namedFile) Filename() string { return f.name }
func (f namedFile) Name() string     { return f.name }

func (f namedFile) ContentType() string {
	switch strings.ToLower(path.Ext(f.name)) {
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	default:
		return "audio/wav"
	}
}

// verboseTranscription is the verbose_json response body.
type verboseTranscription struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	data, filename, err := req.WAVBytes()
	if err != nil {
		return nil, fmt.Errorf("openai stt: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:           namedFile{Reader: bytes.NewReader(data), name: filename},
		Model:          oai.AudioModel(p.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}

	// The typed response only carries the text; read the raw body for
	// segments and the detected language.
	var raw []byte
	if _, err := p.client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&raw)); err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return parseVerbose(raw, req.Language)
}

func parseVerbose(raw []byte, forced string) (*stt.Result, error) {
	var vt verboseTranscription
	if err := json.Unmarshal(raw, &vt); err != nil {
		return nil, fmt.Errorf("openai stt: parse response: %w", err)
	}
	res := &stt.Result{Language: stt.LanguageCode(vt.Language)}
	if res.Language == "" {
		res.Language = forced
	}
	for _, s := range vt.Segments {
		res.Segments = append(res.Segments, stt.Segment{
			Text:  s.Text,
			Start: time.Duration(s.Start * float64(time.Second)),
			End:   time.Duration(s.End * float64(time.Second)),
		})
	}
	if len(res.Segments) == 0 && strings.TrimSpace(vt.Text) != "" {
		res.Segments = []stt.Segment{{Text: vt.Text}}
	}
	return res, nil
}

var _ stt.Provider = (*Provider)(nil)
