// Package transcript produces the timestamped speech transcript for an
// asset via an ASR provider, with adaptive audio re-encoding to fit the
// provider's upload limit.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Segment is a raw provider segment before ids are assigned.
type Segment struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// Provider turns an audio file into timestamped segments. The raw return is
// the provider's response body, kept as provenance.
type Provider interface {
	Transcribe(ctx context.Context, audioPath, lang string) ([]Segment, json.RawMessage, error)
	Name() string
}

// WhisperProvider calls the OpenAI transcription endpoint.
type WhisperProvider struct {
	client *openai.Client
	model  string
}

// NewWhisperProvider builds a provider for the given credentials. baseURL
// is optional and supports OpenAI-compatible gateways.
func NewWhisperProvider(apiKey, baseURL, model string) (*WhisperProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &WhisperProvider{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Name identifies the provider in provenance records.
func (p *WhisperProvider) Name() string {
	return "whisper:" + p.model
}

// Transcribe requests a verbose-JSON transcription and converts the
// segment timings to milliseconds.
func (p *WhisperProvider) Transcribe(ctx context.Context, audioPath, lang string) ([]Segment, json.RawMessage, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: audioPath,
		Language: lang,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("transcription request: %w", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{
			StartMs: int64(s.Start * 1000),
			EndMs:   int64(s.End * 1000),
			Text:    s.Text,
		})
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, nil, err
	}
	return segments, raw, nil
}
