package tts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"bookwhisperer/config"
	"bookwhisperer/internal/core/chunking"
	"bookwhisperer/pkg/logger"
)

// Options are the synthesis knobs forwarded to the speech endpoint.
type Options struct {
	Exaggeration float64 `json:"exaggeration"`
	CfgWeight    float64 `json:"cfg_weight"`
	Temperature  float64 `json:"temperature"`
	Voice        string  `json:"voice,omitempty"`
	Language     string  `json:"language,omitempty"`
}

// DefaultOptions returns the configured synthesis parameters.
func DefaultOptions() Options {
	return Options{
		Exaggeration: config.Cfg.TTS.Exaggeration,
		CfgWeight:    config.Cfg.TTS.CfgWeight,
		Temperature:  config.Cfg.TTS.Temperature,
		Voice:        config.Cfg.TTS.Voice,
		Language:     config.Cfg.TTS.Language,
	}
}

type speechRequest struct {
	Input string `json:"input"`
	Options
}

// Voice describes one entry of the speech server's voice library.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// Client talks to a Chatterbox-compatible speech server.
type Client struct {
	http *resty.Client
}

func New() *Client {
	timeout := time.Duration(config.Cfg.TTS.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return newWithBaseURL(config.Cfg.TTS.BaseURL, timeout)
}

func newWithBaseURL(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: client}
}

// Synthesize renders one chunk of text to audio bytes (wav).
func (c *Client) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(speechRequest{Input: text, Options: opts}).
		Post("/v1/audio/speech")
	if err != nil {
		logger.Error(err, "%v: speech request failed", config.ModuleTTS)
		return nil, err
	}
	if resp.IsError() {
		err := fmt.Errorf("speech endpoint returned %s", resp.Status())
		logger.Error(err, "%v: speech request rejected", config.ModuleTTS)
		return nil, err
	}
	return resp.Body(), nil
}

// SynthesizeChapter splits formatted chapter text into sentence-aligned
// chunks and renders each one. Chunks are returned in order, one audio
// segment per chunk; there is no merge step for audio.
func (c *Client) SynthesizeChapter(ctx context.Context, text string, opts Options, onProgress chunking.ProgressFunc) ([]chunking.Processed[[]byte], error) {
	chunks, err := chunking.Split(text, chunking.ForTTS())
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	logger.Info("%v: synthesizing %d chunks", config.ModuleTTS, len(chunks))

	synth := func(ctx context.Context, chunkText string) ([]byte, error) {
		return c.Synthesize(ctx, chunkText, opts)
	}
	return chunking.ProcessAll(ctx, chunks, synth, onProgress)
}

// Voices lists the speech server's voice library.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	var voices []Voice
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&voices).
		Get("/voices")
	if err != nil {
		logger.Error(err, "%v: list voices failed", config.ModuleTTS)
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("voices endpoint returned %s", resp.Status())
	}
	return voices, nil
}

// UploadVoice stores a custom voice sample in the server's library.
func (c *Client) UploadVoice(ctx context.Context, name, fileName string, sample io.Reader, language string) error {
	req := c.http.R().
		SetContext(ctx).
		SetFileReader("voice_file", fileName, sample).
		SetFormData(map[string]string{"voice_name": name})
	if language != "" {
		req.SetFormData(map[string]string{"language": language})
	}

	resp, err := req.Post("/voices")
	if err != nil {
		logger.Error(err, "%v: upload voice %q failed", config.ModuleTTS, name)
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("voice upload returned %s", resp.Status())
	}
	logger.Info("%v: voice %q uploaded", config.ModuleTTS, name)
	return nil
}

// Health reports whether the speech server answers at all.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/voices")
	if err != nil {
		return fmt.Errorf("tts endpoint unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("tts endpoint returned %s", resp.Status())
	}
	return nil
}
