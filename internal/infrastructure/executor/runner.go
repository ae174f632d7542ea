package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

// Options configures a Runner.
type Options struct {
	Timeout time.Duration
	Shell   string
	Logger  ports.Logger
}

// Runner implements ports.Runner. It routes each fragment to the shell or to
// the interpreter class it belongs to, enforces the wall-clock budget and
// classifies the result.
type Runner struct {
	timeout time.Duration
	shell   *ShellRunner
	script  *ScriptRunner
	meter   *rssMeter
	logger  ports.Logger
}

// NewRunner builds a Runner.
func NewRunner(opts Options) *Runner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultExecutionTimeout
	}
	return &Runner{
		timeout: timeout,
		shell:   NewShellRunner(opts.Shell),
		script:  NewScriptRunner(),
		meter:   newRSSMeter(),
		logger:  opts.Logger,
	}
}

// Shell returns the host shell used for shell fragments.
func (r *Runner) Shell() string {
	return r.shell.Shell()
}

// Run executes one attempt. It never returns an error: every failure is
// folded into the outcome.
func (r *Runner) Run(ctx context.Context, fragment domain.CodeFragment) domain.ExecutionOutcome {
	class := Classify(fragment)
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	startRSS := r.meter.RSS()
	start := time.Now()

	var (
		out string
		err error
	)
	if class == ClassShell {
		out, err = r.shell.Run(runCtx, fragment.Text)
	} else {
		out, err = r.script.Run(runCtx, class, fragment.Text)
	}

	outcome := r.classify(class, out, err)
	outcome.Duration = time.Since(start)
	outcome.MemoryDelta = r.meter.RSS() - startRSS

	if r.logger != nil {
		r.logger.Debug("fragment executed", map[string]interface{}{
			"class":        string(class),
			"success":      outcome.Success,
			"failure":      string(outcome.Failure),
			"duration_ms":  outcome.Duration.Milliseconds(),
			"memory_delta": outcome.MemoryDelta,
		})
	}
	return outcome
}

func (r *Runner) classify(class Class, out string, err error) domain.ExecutionOutcome {
	captured := strings.TrimSpace(out)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Failed(domain.FailureTimeout, string(class),
				fmt.Errorf("execution timed out after %s", r.timeout))
		}
		outcome := domain.Failed(domain.FailureExecution, string(class), err)
		if captured != "" {
			outcome.Output += "\n" + captured
		}
		return outcome
	}
	if strings.Contains(captured, domain.ErrorMarker) {
		return domain.ExecutionOutcome{Output: captured, Failure: domain.FailureExecution}
	}
	if captured == "" {
		captured = emptyNote(class)
	}
	return domain.ExecutionOutcome{Output: captured, Success: true}
}

func emptyNote(class Class) string {
	switch class {
	case ClassShell:
		return "(shell command executed)"
	case ClassFilesystem:
		return "(filesystem task executed)"
	default:
		return "(script executed)"
	}
}

// rssMeter samples the resident set size of this process.
type rssMeter struct {
	proc *process.Process
}

func newRSSMeter() *rssMeter {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &rssMeter{}
	}
	return &rssMeter{proc: proc}
}

// RSS returns the current resident set size in bytes, or 0 when unavailable.
func (m *rssMeter) RSS() int64 {
	if m == nil || m.proc == nil {
		return 0
	}
	info, err := m.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return int64(info.RSS)
}

var _ ports.Runner = (*Runner)(nil)
