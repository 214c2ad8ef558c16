// Package googletts implements ports.SpeechProvider against the Google
// Cloud Text-to-Speech REST API.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/artpar/speechgate/domain/synth"
	"github.com/artpar/speechgate/domain/voice"
	"github.com/artpar/speechgate/ports"
)

const defaultBaseURL = "https://texttospeech.googleapis.com"

// Client calls the provider's REST endpoints.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
}

// Config configures the provider client.
type Config struct {
	BaseURL string // Defaults to the public endpoint
	APIKey  string
	Timeout time.Duration // Transport-level guard; the invoker enforces the call timeout
}

// New creates a provider client.
func New(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: u,
		apiKey:  cfg.APIKey,
	}, nil
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate,omitempty"`
	Pitch         float64 `json:"pitch,omitempty"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type voicesResponse struct {
	Voices []struct {
		Name                   string   `json:"name"`
		LanguageCodes          []string `json:"languageCodes"`
		SSMLGender             string   `json:"ssmlGender"`
		NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
	} `json:"voices"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize renders text or markup to audio bytes.
func (c *Client) Synthesize(ctx context.Context, req synth.ProviderRequest) ([]byte, error) {
	body := synthesizeRequest{
		Voice: voiceSelection{
			LanguageCode: req.LanguageCode,
			Name:         req.VoiceID,
		},
		AudioConfig: audioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  req.SpeakingRate,
			Pitch:         req.Pitch,
		},
	}
	if req.Markup {
		body.Input.SSML = req.Text
	} else {
		body.Input.Text = req.Text
	}

	var resp synthesizeResponse
	if err := c.post(ctx, "synthesize", "/v1/text:synthesize", body, &resp); err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	return audio, nil
}

// ListVoices returns the provider's voice catalog.
func (c *Client) ListVoices(ctx context.Context, languageCode string) ([]voice.Descriptor, error) {
	u := c.endpoint("/v1/voices")
	q := u.Query()
	if languageCode != "" {
		q.Set("languageCode", languageCode)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, classify("voices", httpResp.StatusCode, data)
	}

	var resp voicesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse voices: %w", err)
	}

	out := make([]voice.Descriptor, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		out = append(out, voice.Descriptor{
			ID:            v.Name,
			LanguageCodes: v.LanguageCodes,
			Gender:        v.SSMLGender,
			SampleRateHz:  v.NaturalSampleRateHertz,
		})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, label, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path).String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 50<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return classify(label, httpResp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: path})
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
	}
}

// classify maps a provider error payload to the error taxonomy. Throttling
// (429), unavailability (503) and RESOURCE_EXHAUSTED are retryable; all
// other statuses are fatal.
func classify(label string, statusCode int, body []byte) error {
	var payload errorResponse
	_ = json.Unmarshal(body, &payload)

	retryable := statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		payload.Error.Status == "RESOURCE_EXHAUSTED" ||
		payload.Error.Status == "UNAVAILABLE"

	message := payload.Error.Message
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return &synth.ProviderError{
		Label:      label,
		StatusCode: statusCode,
		Code:       payload.Error.Status,
		Message:    message,
		Retryable:  retryable,
	}
}

// Ensure interface compliance.
var _ ports.SpeechProvider = (*Client)(nil)
