package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ShellRunner runs commands on the host shell.
type ShellRunner struct {
	shell string
}

// NewShellRunner builds a runner; shell defaults to $SHELL, then /bin/sh.
func NewShellRunner(shell string) *ShellRunner {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &ShellRunner{shell: shell}
}

// Shell returns the interpreter path.
func (r *ShellRunner) Shell() string {
	return r.shell
}

// Run executes command with "-c". A non-zero exit is returned as an error
// whose message includes the captured stderr.
func (r *ShellRunner) Run(ctx context.Context, command string) (string, error) {
	c := exec.CommandContext(ctx, r.shell, "-c", command)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = time.Second

	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.String(), ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			return "", fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return "", fmt.Errorf("exit status %d\n%s", exitErr.ExitCode(), detail)
	}
	if err != nil {
		return "", err
	}
	if out := stdout.String(); strings.TrimSpace(out) != "" {
		return out, nil
	}
	return stderr.String(), nil
}
