// Package speech provides the command sources of the listen loop: typed lines
// from a reader, and microphone capture transcribed through a Whisper API.
package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/doeshing/vrelay/internal/ports"
)

type lineResult struct {
	text string
	err  error
}

// LineSource reads one utterance per line. Reading happens on a background
// goroutine so Next can honour ctx; that goroutine exits at the end of input
// or after Close once its pending line is dropped.
type LineSource struct {
	reader io.Reader
	prompt io.Writer
	label  string

	once  sync.Once
	lines chan lineResult
	done  chan struct{}
	close sync.Once
}

// NewLineSource reads from r. When prompt is non-nil, label is written to it
// before each line is awaited.
func NewLineSource(r io.Reader, prompt io.Writer, label string) *LineSource {
	return &LineSource{
		reader: r,
		prompt: prompt,
		label:  label,
		lines:  make(chan lineResult),
		done:   make(chan struct{}),
	}
}

func (s *LineSource) start() {
	go func() {
		defer close(s.lines)
		scanner := bufio.NewScanner(s.reader)
		for scanner.Scan() {
			select {
			case s.lines <- lineResult{text: scanner.Text()}:
			case <-s.done:
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		select {
		case s.lines <- lineResult{err: err}:
		case <-s.done:
		}
	}()
}

// Next returns the next line, io.EOF at the end of input.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	s.once.Do(s.start)
	if s.prompt != nil && s.label != "" {
		fmt.Fprint(s.prompt, s.label)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		return "", io.EOF
	case res, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}

// Close stops delivering lines.
func (s *LineSource) Close() error {
	s.close.Do(func() { close(s.done) })
	return nil
}

var _ ports.CommandSource = (*LineSource)(nil)
