// Package audio captures microphone input through PortAudio.
package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/doeshing/vrelay/internal/domain"
)

const (
	sampleRate       = 16000
	frameSize        = 320 // 20ms at 16 kHz
	silenceThreshold = 0.015
	trailingSilence  = 600 * time.Millisecond
	frameDuration    = 20 * time.Millisecond
)

// PortAudioRecorder records from the default input device. Capture starts at
// the first voiced frame and stops after a stretch of trailing silence.
type PortAudioRecorder struct{}

// NewPortAudioRecorder initializes PortAudio; Close releases it.
func NewPortAudioRecorder() (*PortAudioRecorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}
	return &PortAudioRecorder{}, nil
}

// Close terminates PortAudio.
func (r *PortAudioRecorder) Close() error {
	return portaudio.Terminate()
}

// Record returns the captured samples; an empty slice means nobody spoke.
func (r *PortAudioRecorder) Record(ctx context.Context, maxDuration time.Duration) ([]float32, error) {
	if maxDuration <= 0 {
		maxDuration = domain.DefaultMaxRecordSeconds * time.Second
	}
	buf := make([]float32, frameSize)
	out := make([]float32, 0, sampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
	)
	maxFrames := int(maxDuration / frameDuration)
	silenceLimit := int(trailingSilence / frameDuration)

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > silenceThreshold {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}
		if speaking {
			silenceFrames++
			if silenceFrames >= silenceLimit {
				break
			}
			out = append(out, buf...)
		}
	}
	return out, nil
}

func frameRMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, x := range frame {
		sum += float64(x * x)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
