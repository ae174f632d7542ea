// Package repair runs a code fragment through the execute-verify-repair loop.
//
// One invocation walks a small state machine:
//
//	CacheCheck -> Execute -> Success
//	                      -> NeedsRepair -> Repair -> Execute -> ...
//	                      -> Exhausted
//	           -> Blocked
//
// A verified repair is memoized under the original fragment so the next run of
// the same broken text starts from the fix.
package repair

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/pkg/codeblock"
	"github.com/doeshing/vrelay/internal/pkg/logger"
	"github.com/doeshing/vrelay/internal/ports"
)

// Options wires a Coordinator. Cache, Filter and Runner are required.
type Options struct {
	Cache       ports.FixCache
	Filter      ports.DangerFilter
	Runner      ports.Runner
	Oracle      ports.Oracle
	History     ports.ExecutionHistory
	Logger      ports.Logger
	MaxAttempts int
}

// Coordinator owns the retry loop for one fragment at a time.
type Coordinator struct {
	cache       ports.FixCache
	filter      ports.DangerFilter
	runner      ports.Runner
	oracle      ports.Oracle
	history     ports.ExecutionHistory
	logger      ports.Logger
	maxAttempts int
}

// New validates the dependencies and returns a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Cache == nil || opts.Filter == nil || opts.Runner == nil {
		return nil, errors.New("repair.Coordinator dependencies not satisfied")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxRetries
	}
	return &Coordinator{
		cache:       opts.Cache,
		filter:      opts.Filter,
		runner:      opts.Runner,
		oracle:      opts.Oracle,
		history:     opts.History,
		logger:      log,
		maxAttempts: maxAttempts,
	}, nil
}

// MaxAttempts is the number of executions allowed per fragment.
func (c *Coordinator) MaxAttempts() int {
	return c.maxAttempts
}

// Run drives fragment to a terminal state. Execution and oracle failures are
// part of the report; the returned error is reserved for a failed cache write
// or a cancelled context.
func (c *Coordinator) Run(ctx context.Context, fragment domain.CodeFragment) (domain.Report, error) {
	original := domain.NewFragment(fragment.Text, fragment.Language)
	report := domain.Report{
		RunID:    uuid.NewString(),
		Original: original,
		Final:    original,
	}

	working := original
	if fix, ok := c.cache.Get(original.Key()); ok {
		working = original.WithText(fix)
		report.FromCache = true
		c.logger.Debug("fix cache hit", map[string]interface{}{"run_id": report.RunID})
	}

	for attempt := 1; ; attempt++ {
		report.Final = working

		if pattern, blocked := c.filter.Match(working.Text); blocked {
			c.logger.Warn("fragment blocked", map[string]interface{}{
				"run_id":  report.RunID,
				"pattern": pattern,
			})
			report.Status = domain.StatusBlocked
			report.Output = domain.BlockedMessage
			report.Outcomes = append(report.Outcomes, domain.ExecutionOutcome{
				Output:  domain.BlockedMessage,
				Failure: domain.FailurePolicy,
			})
			c.record(report)
			return report, nil
		}

		outcome := c.runner.Run(ctx, working)
		report.Attempts = attempt
		report.Outcomes = append(report.Outcomes, outcome)
		c.logger.Debug("attempt finished", map[string]interface{}{
			"run_id":      report.RunID,
			"attempt":     attempt,
			"success":     outcome.Success,
			"duration_ms": outcome.Duration.Milliseconds(),
			"rss_delta":   outcome.MemoryDelta,
		})

		if outcome.Success {
			report.Status = domain.StatusSuccess
			report.Output = outcome.Output
			var cacheErr error
			if working.Key() != original.Key() {
				if cacheErr = c.cache.Add(original.Key(), working.Key()); cacheErr == nil {
					report.CacheWrite = true
				}
			}
			c.record(report)
			if cacheErr != nil {
				return report, fmt.Errorf("record fix: %w", cacheErr)
			}
			return report, nil
		}

		if attempt >= c.maxAttempts {
			report.Status = domain.StatusExhausted
			report.Output = ExhaustedOutput(c.maxAttempts, outcome.Output)
			c.record(report)
			return report, nil
		}

		if err := ctx.Err(); err != nil {
			report.Status = domain.StatusExhausted
			report.Output = outcome.Output
			c.record(report)
			return report, err
		}

		working = c.repair(ctx, &report, original, working, outcome.Output)
	}
}

// repair asks the oracle for a fixed version of the original fragment. The
// working fragment is returned unchanged when the oracle fails or replies
// without a code block.
func (c *Coordinator) repair(ctx context.Context, report *domain.Report, original, working domain.CodeFragment, failure string) domain.CodeFragment {
	if c.oracle == nil {
		return working
	}
	report.OracleCalls++
	reply, err := c.oracle.Chat(ctx, Prompt(original, failure))
	if err != nil {
		c.logger.Warn("repair oracle failed", map[string]interface{}{
			"run_id": report.RunID,
			"error":  err.Error(),
		})
		return working
	}
	block, ok := codeblock.First(reply)
	if !ok {
		c.logger.Debug("repair reply has no code block", map[string]interface{}{"run_id": report.RunID})
		return working
	}
	lang := working.Language
	if block.Tag != "" {
		lang = block.Language
	}
	return domain.NewFragment(block.Code, lang)
}

func (c *Coordinator) record(report domain.Report) {
	if c.history == nil {
		return
	}
	c.history.Record(report.Original.Text, report.Output, report.Succeeded())
}

// Prompt builds the repair request sent to the oracle.
func Prompt(original domain.CodeFragment, failure string) string {
	return fmt.Sprintf("Fix this code. Don't explain. Only return valid, working code block.\n```%s\n%s\n```\nThe error was:\n```\n%s\n```",
		fenceTag(original.Language), original.Text, failure)
}

// ExhaustedOutput is the report text after every attempt failed.
func ExhaustedOutput(maxAttempts int, last string) string {
	return fmt.Sprintf("%s after %d retries.\nLast error:\n%s", domain.ExhaustedMarker, maxAttempts, last)
}

func fenceTag(lang domain.Language) string {
	if lang == domain.LanguageShell {
		return "sh"
	}
	return "go"
}
