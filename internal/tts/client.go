// Package tts synthesises speech through a cloud text-to-speech provider,
// replacing the teacher's on-device Kokoro synthesis: the Answer Path's
// TTS sink is explicitly an external collaborator (spec.md §1).
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the cloud TTS client.
type Config struct {
	Endpoint string
	APIKey   string
	Voice    string
	Rate     float64
	Timeout  time.Duration // default 15s
}

// Client is a bearer-authenticated HTTPS client returning WAV audio.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	voice      string
	rate       float64
}

// New constructs a Client bound to cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 1.0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		voice:      cfg.Voice,
		rate:       rate,
	}
}

type synthesizeRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice,omitempty"`
	Format string  `json:"format"`
	Rate   float64 `json:"rate,omitempty"`
}

// Synthesize requests a WAV rendering of text. The source marker line of
// display_text must never be passed in here — the orchestrator calls
// Synthesize with the Answer's SpokenText, which the Answer Path builds
// without the marker (spec.md §4.H.5).
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(synthesizeRequest{
		Text:   text,
		Voice:  c.voice,
		Format: "wav",
		Rate:   c.rate,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tts: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("tts: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts: endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
