package speech

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/doeshing/vrelay/internal/ports"
)

// Recorder captures one utterance of mono 16 kHz PCM.
type Recorder interface {
	Record(ctx context.Context, maxDuration time.Duration) ([]float32, error)
}

// MicSource turns recorded speech into utterances.
type MicSource struct {
	recorder    Recorder
	transcriber ports.Transcriber
	maxDuration time.Duration
	logger      ports.Logger
	prompt      io.Writer
	closer      io.Closer
}

// MicOptions configures a MicSource.
type MicOptions struct {
	Recorder    Recorder
	Transcriber ports.Transcriber
	MaxDuration time.Duration
	Logger      ports.Logger
	// Prompt receives a listening indicator before each capture.
	Prompt io.Writer
}

// NewMicSource wires a recorder to a transcriber.
func NewMicSource(opts MicOptions) *MicSource {
	src := &MicSource{
		recorder:    opts.Recorder,
		transcriber: opts.Transcriber,
		maxDuration: opts.MaxDuration,
		logger:      opts.Logger,
		prompt:      opts.Prompt,
	}
	if c, ok := opts.Recorder.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// Next records and transcribes one utterance. Silence and failed
// transcriptions yield "" so the listen loop simply tries again.
func (m *MicSource) Next(ctx context.Context) (string, error) {
	if m.prompt != nil {
		fmt.Fprintln(m.prompt, "Listening... (say 'exit' to quit)")
	}
	pcm, err := m.recorder.Record(ctx, m.maxDuration)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	text, err := m.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("transcription failed", map[string]interface{}{"error": err.Error()})
		}
		return "", nil
	}
	return text, nil
}

// Close releases the recorder.
func (m *MicSource) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

var _ ports.CommandSource = (*MicSource)(nil)
