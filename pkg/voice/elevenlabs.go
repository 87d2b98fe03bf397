// Package voice turns Luna replies into speech
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/astrapersonal/astra-api/pkg/logger"
)

var (
	// ErrSynthesisFailed is returned when the speech provider rejects the request
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// PlaceholderURL is returned when audio was produced but no bucket is configured
const PlaceholderURL = "audio_generated"

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	modelID        = "eleven_multilingual_v2"
)

// AudioStore persists synthesized audio and returns a public URL
type AudioStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Config holds ElevenLabs settings
type Config struct {
	APIKey  string
	VoiceID string
	BaseURL string // default: https://api.elevenlabs.io
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Client calls the ElevenLabs text-to-speech endpoint
type Client struct {
	apiKey     string
	voiceID    string
	baseURL    string
	httpClient *http.Client
	store      AudioStore
	logger     logger.Logger
}

// NewClient creates a speech client. store may be nil.
func NewClient(cfg Config, store AudioStore, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store:  store,
		logger: log,
	}
}

// Synthesize returns the MP3 bytes for text
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.8,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSynthesisFailed, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return audio, nil
}

// Speak synthesizes text and stores it under key, returning the audio URL
func (c *Client) Speak(ctx context.Context, key, text string) (string, error) {
	audio, err := c.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	if c.store == nil {
		return PlaceholderURL, nil
	}

	url, err := c.store.Put(ctx, key, audio, "audio/mpeg")
	if err != nil {
		c.logger.Warn("audio upload failed", "key", key, "error", err)
		return "", err
	}
	return url, nil
}
