// Package session runs the listen loop: a producer reads utterances from a
// command source into a bounded queue and a single worker relays them, one at
// a time, in arrival order.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/vrelay/internal/application/relay"
	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/pkg/logger"
	"github.com/doeshing/vrelay/internal/ports"
)

// ErrShutdownTimeout is returned when the loop goroutines do not finish within
// the shutdown budget after cancellation.
var ErrShutdownTimeout = errors.New("session shutdown timed out")

// Handler processes one utterance.
type Handler interface {
	Handle(ctx context.Context, utterance string) (relay.Result, error)
}

// Summarizer reports session statistics; the history log implements it.
type Summarizer interface {
	Summary() domain.SessionSummary
}

// Options configures a Session.
type Options struct {
	Source          ports.CommandSource
	Handler         Handler
	ExitPhrases     []string
	QueueSize       int
	ShutdownTimeout time.Duration
	// HandleSignals stops the session on SIGINT and SIGTERM.
	HandleSignals bool
	Summarizer    Summarizer
	Logger        ports.Logger
	// OnHeard is called for every accepted utterance, from the producer goroutine.
	OnHeard func(utterance string)
	// OnResult is called after every handled utterance, from the worker goroutine.
	OnResult func(result relay.Result, err error)
}

// Session is one listen lifecycle. Run may be called once.
type Session struct {
	opts        Options
	exitPhrases map[string]bool
	logger      ports.Logger

	handled   atomic.Int64
	succeeded atomic.Int64
}

// New validates opts and returns a Session.
func New(opts Options) (*Session, error) {
	if opts.Source == nil || opts.Handler == nil {
		return nil, errors.New("session requires a source and a handler")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = domain.DefaultQueueSize
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = domain.DefaultShutdownTimeout
	}
	phrases := opts.ExitPhrases
	if len(phrases) == 0 {
		phrases = []string{"exit", "quit", "stop"}
	}
	exit := make(map[string]bool, len(phrases))
	for _, phrase := range phrases {
		exit[strings.ToLower(strings.TrimSpace(phrase))] = true
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Session{opts: opts, exitPhrases: exit, logger: log}, nil
}

// IsExit reports whether utterance ends the session.
func (s *Session) IsExit(utterance string) bool {
	return s.exitPhrases[strings.ToLower(strings.TrimSpace(utterance))]
}

// Run listens until an exit phrase, the end of the source, a source failure or
// cancellation of ctx. Utterances queued before an exit phrase are still
// handled; after cancellation the worker stops at the next utterance boundary.
func (s *Session) Run(ctx context.Context) (domain.SessionSummary, error) {
	if s.opts.HandleSignals {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}
	started := time.Now()
	defer func() {
		if err := s.opts.Source.Close(); err != nil {
			s.logger.Warn("close command source failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	queue := make(chan string, s.opts.QueueSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		return s.produce(gctx, queue)
	})
	g.Go(func() error {
		return s.consume(gctx, queue)
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		s.logger.Info("session cancelled", map[string]interface{}{"reason": context.Cause(ctx).Error()})
		select {
		case err = <-done:
		case <-time.After(s.opts.ShutdownTimeout):
			err = ErrShutdownTimeout
		}
	}
	return s.summary(started), err
}

func (s *Session) produce(ctx context.Context, queue chan<- string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		utterance, err := s.opts.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.logger.Debug("command source exhausted", nil)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		utterance = strings.TrimSpace(utterance)
		if utterance == "" {
			continue
		}
		if s.IsExit(utterance) {
			s.logger.Info("exit phrase heard", map[string]interface{}{"phrase": utterance})
			return nil
		}
		if s.opts.OnHeard != nil {
			s.opts.OnHeard(utterance)
		}
		select {
		case queue <- utterance:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) consume(ctx context.Context, queue <-chan string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case utterance, ok := <-queue:
			if !ok {
				return nil
			}
			// A started command runs to completion; cancellation is observed
			// between commands.
			result, err := s.opts.Handler.Handle(context.WithoutCancel(ctx), utterance)
			s.handled.Add(1)
			if err == nil && result.Succeeded() {
				s.succeeded.Add(1)
			}
			if err != nil {
				s.logger.Warn("command failed", map[string]interface{}{
					"utterance": utterance,
					"error":     err.Error(),
				})
			}
			if s.opts.OnResult != nil {
				s.opts.OnResult(result, err)
			}
		}
	}
}

func (s *Session) summary(started time.Time) domain.SessionSummary {
	if s.opts.Summarizer != nil {
		return s.opts.Summarizer.Summary()
	}
	return domain.SessionSummary{
		Started:      started,
		Duration:     time.Since(started),
		CommandCount: int(s.handled.Load()),
		Succeeded:    int(s.succeeded.Load()),
	}
}
