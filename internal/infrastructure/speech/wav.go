package speech

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// SampleRate is the capture and upload rate expected by Whisper.
	SampleRate = 16000
	bitDepth   = 16
)

// EncodeWAV renders mono float32 PCM in [-1, 1] as a 16-bit WAV file. The
// encoder needs a seekable writer, so the file is staged in a temp file.
func EncodeWAV(pcm []float32, sampleRate int) ([]byte, error) {
	tmp, err := os.CreateTemp("", "vrelay-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	enc := wav.NewEncoder(tmp, sampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           toInt16Range(pcm),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish wav: %w", err)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(tmp)
}

func toInt16Range(pcm []float32) []int {
	out := make([]int, len(pcm))
	for i, v := range pcm {
		x := math.Max(-1, math.Min(1, float64(v)))
		out[i] = int(math.Round(x * math.MaxInt16))
	}
	return out
}
