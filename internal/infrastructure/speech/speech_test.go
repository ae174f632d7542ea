package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/vrelay/internal/pkg/logger"
)

func TestLineSourceReadsUntilEOF(t *testing.T) {
	var prompt bytes.Buffer
	src := NewLineSource(strings.NewReader("list files\n\nexit\n"), &prompt, "> ")
	defer src.Close()

	var got []string
	for {
		line, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"list files", "", "exit"}, got)
	assert.Equal(t, "> > > > ", prompt.String())

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineSourceHonoursContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewLineSource(pr, nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := src.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, src.Close())
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	pcm := make([]float32, SampleRate/10)
	for i := range pcm {
		pcm[i] = 0.5
	}
	pcm[0] = 2 // clipped

	data, err := EncodeWAV(pcm, SampleRate)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("RIFF")))

	dec := wav.NewDecoder(bytes.NewReader(data))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, SampleRate, int(dec.SampleRate))
	assert.Equal(t, 1, int(dec.NumChans))
	require.Len(t, buf.Data, len(pcm))
	assert.Equal(t, 32767, buf.Data[0])
	assert.Equal(t, 16384, buf.Data[1])
}

func TestWhisperTranscriberUploadsWAV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"), r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "whisper-large-v3", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "utterance.wav", header.Filename)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" list files "}`)
	}))
	defer server.Close()

	tr, err := NewWhisperTranscriber(WhisperOptions{
		APIKey:     "key",
		BaseURL:    server.URL + "/",
		Language:   "en",
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), []float32{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.Equal(t, "list files", text)

	text, err = tr.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestWhisperTranscriberRequiresKey(t *testing.T) {
	_, err := NewWhisperTranscriber(WhisperOptions{})
	require.Error(t, err)
}

type stubRecorder struct {
	pcm    []float32
	err    error
	closed bool
}

func (r *stubRecorder) Record(ctx context.Context, _ time.Duration) ([]float32, error) {
	return r.pcm, r.err
}

func (r *stubRecorder) Close() error {
	r.closed = true
	return nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(context.Context, []float32) (string, error) {
	return s.text, s.err
}

func TestMicSource(t *testing.T) {
	rec := &stubRecorder{pcm: []float32{0.2}}
	src := NewMicSource(MicOptions{Recorder: rec, Transcriber: stubTranscriber{text: "open docs"}, Logger: logger.Nop()})
	text, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open docs", text)

	silent := NewMicSource(MicOptions{Recorder: &stubRecorder{}, Transcriber: stubTranscriber{text: "x"}})
	text, err = silent.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text)

	miss := NewMicSource(MicOptions{Recorder: rec, Transcriber: stubTranscriber{err: errors.New("503")}, Logger: logger.Nop()})
	text, err = miss.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text)

	broken := NewMicSource(MicOptions{Recorder: &stubRecorder{err: errors.New("no device")}, Transcriber: stubTranscriber{}})
	_, err = broken.Next(context.Background())
	require.Error(t, err)

	require.NoError(t, src.Close())
	assert.True(t, rec.closed)
}
