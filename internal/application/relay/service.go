// Package relay turns one utterance into executed code: it asks the oracle for
// code, runs every fenced block through the repair loop and reports the links
// found in the reply.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/pkg/codeblock"
	"github.com/doeshing/vrelay/internal/ports"
)

// FragmentRunner drives one fragment to a terminal report.
type FragmentRunner interface {
	Run(ctx context.Context, fragment domain.CodeFragment) (domain.Report, error)
}

// ContextAware oracles accept a refreshed workspace snapshot before each turn.
type ContextAware interface {
	UpdateContext(domain.ContextSnapshot) error
}

// Result is the outcome of one handled utterance.
type Result struct {
	Utterance string
	Prompt    string
	Reply     string
	Reports   []domain.Report
	Links     []string
}

// Succeeded reports whether every fragment succeeded. A reply without code is
// not a failure.
func (r Result) Succeeded() bool {
	for _, report := range r.Reports {
		if !report.Succeeded() {
			return false
		}
	}
	return true
}

// Service orchestrates the relay lifecycle end-to-end.
type Service struct {
	Config    domain.Config
	Collector ports.ContextCollector
	Oracle    ports.Oracle
	Runner    FragmentRunner
	History   ports.ExecutionHistory
	Links     ports.LinkOpener
	Logger    ports.Logger
	// RelevantLimit is how many related history records are sent along.
	RelevantLimit int
}

// Handle processes a single utterance. An empty utterance is a no-op. Oracle
// failures are returned before anything runs.
func (s *Service) Handle(ctx context.Context, utterance string) (Result, error) {
	if s.Oracle == nil || s.Runner == nil || s.Logger == nil {
		return Result{}, errors.New("relay.Service dependencies not satisfied")
	}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Result{}, nil
	}
	result := Result{Utterance: utterance}

	s.refreshContext(ctx)
	result.Prompt = utterance + s.historyContext(utterance)

	s.Logger.Info("asking oracle", map[string]interface{}{
		"oracle":    s.Oracle.Name(),
		"utterance": utterance,
	})
	reply, err := s.Oracle.Chat(ctx, result.Prompt)
	if err != nil {
		return result, fmt.Errorf("oracle chat: %w", err)
	}
	result.Reply = reply

	var runErrs []error
	for i, block := range codeblock.All(reply) {
		report, err := s.Runner.Run(ctx, block.Fragment())
		result.Reports = append(result.Reports, report)
		if err != nil {
			s.Logger.Error("fragment run failed", err, map[string]interface{}{"block": i})
			runErrs = append(runErrs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}

	result.Links = codeblock.Links(reply)
	for _, link := range result.Links {
		if s.Links == nil {
			break
		}
		if err := s.Links.Open(link); err != nil {
			s.Logger.Warn("open link failed", map[string]interface{}{"url": link, "error": err.Error()})
		}
	}

	return result, errors.Join(runErrs...)
}

func (s *Service) refreshContext(ctx context.Context) {
	aware, ok := s.Oracle.(ContextAware)
	if !ok || s.Collector == nil {
		return
	}
	snapshot, err := s.Collector.Collect(ctx, s.Config)
	if err != nil {
		s.Logger.Warn("collect context failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := aware.UpdateContext(snapshot); err != nil {
		s.Logger.Warn("update oracle context failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) historyContext(utterance string) string {
	if s.History == nil {
		return ""
	}
	limit := s.RelevantLimit
	if limit <= 0 {
		limit = domain.DefaultRelevantHistory
	}
	records := s.History.Relevant(utterance, limit)
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nRelevant command history:")
	for _, record := range records {
		fmt.Fprintf(&b, "\n- %s (%t)", record.Command, record.Success)
	}
	return b.String()
}
