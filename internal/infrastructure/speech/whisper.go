package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/doeshing/vrelay/internal/ports"
)

// DefaultTranscriptionModel is Groq's hosted Whisper.
const DefaultTranscriptionModel = "whisper-large-v3"

// WhisperOptions configures a WhisperTranscriber.
type WhisperOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// WhisperTranscriber uploads captured audio to an OpenAI-compatible
// transcription endpoint.
type WhisperTranscriber struct {
	client   openai.Client
	model    string
	language string
}

// NewWhisperTranscriber builds the transcription client.
func NewWhisperTranscriber(opts WhisperOptions) (*WhisperTranscriber, error) {
	if opts.APIKey == "" {
		return nil, errors.New("missing transcription API key")
	}
	requestOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(1),
	}
	if opts.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	model := opts.Model
	if model == "" {
		model = DefaultTranscriptionModel
	}
	return &WhisperTranscriber{
		client:   openai.NewClient(requestOpts...),
		model:    model,
		language: opts.Language,
	}, nil
}

// Transcribe encodes pcm as WAV and returns the recognized text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	data, err := EncodeWAV(pcm, SampleRate)
	if err != nil {
		return "", err
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

var _ ports.Transcriber = (*WhisperTranscriber)(nil)
