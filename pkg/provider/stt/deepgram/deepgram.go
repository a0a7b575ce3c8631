// Package deepgram provides a Deepgram-backed STT provider using the
// pre-recorded audio REST API (POST /v1/listen).
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/MrWong99/skillprobe/pkg/provider/stt"
)

const (
	deepgramEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultTimeout   = 30 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL overrides the listen endpoint. Used for tests and proxies.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.endpoint = u
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

// Provider implements stt.Provider backed by the Deepgram REST API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   deepgramEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// listenResponse is the subset of the Deepgram response SkillProbe reads.
type listenResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage   string  `json:"detected_language"`
			LanguageConfidence float64 `json:"language_confidence"`
			Alternatives       []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// buildURL returns the listen URL with query parameters for lang. An empty
// lang turns on Deepgram's language detection.
func (p *Provider) buildURL(lang string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("deepgram: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("utterances", "true")
	if lang == "" {
		q.Set("detect_language", "true")
	} else {
		q.Set("language", lang)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Transcribe posts the request audio to Deepgram and maps utterances to
// segments.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	data, filename, err := req.WAVBytes()
	if err != nil {
		return nil, fmt.Errorf("deepgram: %w", err)
	}
	endpoint, err := p.buildURL(req.Language)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	httpReq.Header.Set("Content-Type", contentType(filename))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}

	res := &stt.Result{Language: req.Language}
	if len(lr.Results.Channels) > 0 {
		ch := lr.Results.Channels[0]
		if ch.DetectedLanguage != "" {
			res.Language = stt.LanguageCode(ch.DetectedLanguage)
			res.LanguageProbability = ch.LanguageConfidence
		}
		if len(lr.Results.Utterances) == 0 && len(ch.Alternatives) > 0 {
			res.Segments = []stt.Segment{{Text: ch.Alternatives[0].Transcript}}
		}
	}
	for _, u := range lr.Results.Utterances {
		res.Segments = append(res.Segments, stt.Segment{
			Text:  u.Transcript,
			Start: time.Duration(u.Start * float64(time.Second)),
			End:   time.Duration(u.End * float64(time.Second)),
		})
	}
	return res, nil
}

// contentType guesses the MIME type from the upload's file extension.
func contentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

var _ stt.Provider = (*Provider)(nil)
