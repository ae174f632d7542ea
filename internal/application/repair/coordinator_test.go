package repair

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/infrastructure/cache"
	"github.com/doeshing/vrelay/internal/infrastructure/executor"
	"github.com/doeshing/vrelay/internal/infrastructure/history"
	"github.com/doeshing/vrelay/internal/infrastructure/security"
)

type stubCache struct {
	data   map[string]string
	writes int
	err    error
}

func newStubCache() *stubCache { return &stubCache{data: map[string]string{}} }

func (s *stubCache) Get(original string) (string, bool) {
	fix, ok := s.data[original]
	return fix, ok
}

func (s *stubCache) Add(original, fixed string) error {
	if s.err != nil {
		return s.err
	}
	s.writes++
	s.data[original] = fixed
	return nil
}

type scriptedRunner struct {
	mu    sync.Mutex
	calls []domain.CodeFragment
	// succeed reports whether a fragment text runs cleanly.
	succeed func(text string) bool
}

func (r *scriptedRunner) Run(_ context.Context, fragment domain.CodeFragment) domain.ExecutionOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fragment)
	if r.succeed(fragment.Text) {
		return domain.ExecutionOutcome{Output: "ok: " + fragment.Text, Success: true}
	}
	return domain.Failed(domain.FailureExecution, "Script", errors.New("boom: "+fragment.Text))
}

type stubOracle struct {
	replies []string
	err     error
	prompts []string
}

func (o *stubOracle) Name() string { return "stub" }

func (o *stubOracle) Chat(_ context.Context, prompt string) (string, error) {
	o.prompts = append(o.prompts, prompt)
	if o.err != nil {
		return "", o.err
	}
	if len(o.replies) == 0 {
		return "I cannot help with that.", nil
	}
	reply := o.replies[0]
	o.replies = o.replies[1:]
	return reply, nil
}

type stubHistory struct {
	records []domain.HistoryRecord
}

func (h *stubHistory) Record(command, result string, success bool) domain.HistoryRecord {
	rec := domain.HistoryRecord{Command: command, Result: result, Success: success}
	h.records = append(h.records, rec)
	return rec
}

func (h *stubHistory) Relevant(string, int) []domain.HistoryRecord { return nil }

func newCoordinator(t *testing.T, c *stubCache, r *scriptedRunner, o *stubOracle, h *stubHistory) *Coordinator {
	t.Helper()
	opts := Options{Cache: c, Filter: security.NewDangerFilter(), Runner: r, History: h}
	if o != nil {
		opts.Oracle = o
	}
	coord, err := New(opts)
	require.NoError(t, err)
	return coord
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	coord, err := New(Options{Cache: newStubCache(), Filter: security.NewDangerFilter(), Runner: &scriptedRunner{}})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMaxRetries, coord.MaxAttempts())
}

func TestBlockedFragmentNeverRuns(t *testing.T) {
	runner := &scriptedRunner{succeed: func(string) bool { return true }}
	oracle := &stubOracle{}
	hist := &stubHistory{}
	fc := newStubCache()
	coord := newCoordinator(t, fc, runner, oracle, hist)

	report, err := coord.Run(context.Background(), domain.NewFragment("sudo RM -RF /", domain.LanguageShell))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusBlocked, report.Status)
	assert.Equal(t, domain.BlockedMessage, report.Output)
	assert.Empty(t, runner.calls)
	assert.Empty(t, oracle.prompts)
	assert.Zero(t, fc.writes)
	require.Len(t, hist.records, 1)
	assert.False(t, hist.records[0].Success)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, domain.FailurePolicy, report.Outcomes[0].Failure)
}

func TestAlwaysFailingFragmentExhaustsAttempts(t *testing.T) {
	for _, maxAttempts := range []int{1, 3, 5} {
		runner := &scriptedRunner{succeed: func(string) bool { return false }}
		oracle := &stubOracle{replies: []string{"```go\nstill broken\n```", "```go\nbroken again\n```"}}
		hist := &stubHistory{}
		fc := newStubCache()
		coord, err := New(Options{
			Cache: fc, Filter: security.NewDangerFilter(), Runner: runner,
			Oracle: oracle, History: hist, MaxAttempts: maxAttempts,
		})
		require.NoError(t, err)

		report, err := coord.Run(context.Background(), domain.NewFragment("broken", domain.LanguageScript))
		require.NoError(t, err)

		assert.Equal(t, domain.StatusExhausted, report.Status)
		assert.Equal(t, maxAttempts, report.Attempts)
		assert.Len(t, runner.calls, maxAttempts)
		assert.Equal(t, maxAttempts-1, report.OracleCalls)
		assert.Len(t, oracle.prompts, maxAttempts-1)
		assert.True(t, strings.HasPrefix(report.Output, "All attempts failed after "), report.Output)
		assert.Contains(t, report.Output, "Last error:\n")
		assert.Zero(t, fc.writes)
		require.Len(t, hist.records, 1)
		assert.Equal(t, "broken", hist.records[0].Command)
		assert.False(t, hist.records[0].Success)
	}
}

func TestRepairPromptUsesOriginalFragment(t *testing.T) {
	runner := &scriptedRunner{succeed: func(string) bool { return false }}
	oracle := &stubOracle{replies: []string{"```go\nsecond\n```"}}
	coord := newCoordinator(t, newStubCache(), runner, oracle, &stubHistory{})

	_, err := coord.Run(context.Background(), domain.NewFragment("first", domain.LanguageScript))
	require.NoError(t, err)

	require.Len(t, oracle.prompts, 2)
	for _, prompt := range oracle.prompts {
		assert.Contains(t, prompt, "```go\nfirst\n```")
	}
	assert.Contains(t, oracle.prompts[1], "boom: second")
	assert.Equal(t, "second", runner.calls[1].Text)
}

func TestFailThenFixWritesCacheOnce(t *testing.T) {
	runner := &scriptedRunner{succeed: func(text string) bool { return text == "fixed()" }}
	oracle := &stubOracle{replies: []string{"Here:\n```python\nfixed()\n```"}}
	hist := &stubHistory{}
	fc := newStubCache()
	coord := newCoordinator(t, fc, runner, oracle, hist)

	report, err := coord.Run(context.Background(), domain.NewFragment("  broken()  ", domain.LanguageScript))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, report.Status)
	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, 1, report.OracleCalls)
	assert.True(t, report.CacheWrite)
	assert.Equal(t, 1, fc.writes)
	assert.Equal(t, "fixed()", fc.data["broken()"])
	assert.Equal(t, "fixed()", report.Final.Text)
	require.Len(t, hist.records, 1)
	assert.Equal(t, "broken()", hist.records[0].Command)
	assert.True(t, hist.records[0].Success)
}

func TestCacheHitIsStillVerified(t *testing.T) {
	runner := &scriptedRunner{succeed: func(text string) bool { return text == "fixed()" }}
	oracle := &stubOracle{}
	fc := newStubCache()
	fc.data["broken()"] = "fixed()"
	coord := newCoordinator(t, fc, runner, oracle, &stubHistory{})

	report, err := coord.Run(context.Background(), domain.NewFragment("broken()", domain.LanguageScript))
	require.NoError(t, err)

	assert.True(t, report.FromCache)
	assert.Equal(t, domain.StatusSuccess, report.Status)
	assert.Equal(t, 1, report.Attempts)
	assert.Empty(t, oracle.prompts)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "fixed()", runner.calls[0].Text)
}

func TestDangerousRepairIsBlocked(t *testing.T) {
	runner := &scriptedRunner{succeed: func(string) bool { return false }}
	oracle := &stubOracle{replies: []string{"```sh\nshutdown now\n```"}}
	coord := newCoordinator(t, newStubCache(), runner, oracle, &stubHistory{})

	report, err := coord.Run(context.Background(), domain.NewFragment("ls /nope", domain.LanguageShell))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlocked, report.Status)
	assert.Len(t, runner.calls, 1)
}

func TestAlwaysSucceedingFragmentIsIdempotent(t *testing.T) {
	runner := &scriptedRunner{succeed: func(string) bool { return true }}
	fc := newStubCache()
	hist := &stubHistory{}
	coord := newCoordinator(t, fc, runner, &stubOracle{}, hist)

	for i := 0; i < 3; i++ {
		report, err := coord.Run(context.Background(), domain.NewFragment("echo hi", domain.LanguageShell))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSuccess, report.Status)
		assert.Equal(t, "ok: echo hi", report.Output)
		assert.Equal(t, 1, report.Attempts)
		assert.Zero(t, report.OracleCalls)
		assert.False(t, report.CacheWrite)
	}
	assert.Zero(t, fc.writes)
	assert.Len(t, hist.records, 3)
}

func TestOracleFailuresConsumeAttempts(t *testing.T) {
	runner := &scriptedRunner{succeed: func(string) bool { return false }}
	oracle := &stubOracle{err: &domain.OracleError{Provider: "stub", Err: errors.New("429")}}
	coord := newCoordinator(t, newStubCache(), runner, oracle, &stubHistory{})

	report, err := coord.Run(context.Background(), domain.NewFragment("x", domain.LanguageScript))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExhausted, report.Status)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 2, report.OracleCalls)
	for _, call := range runner.calls {
		assert.Equal(t, "x", call.Text)
	}
}

func TestReplyWithoutBlockKeepsFragment(t *testing.T) {
	runner := &scriptedRunner{succeed: func(string) bool { return false }}
	coord := newCoordinator(t, newStubCache(), runner, &stubOracle{}, &stubHistory{})

	report, err := coord.Run(context.Background(), domain.NewFragment("x", domain.LanguageScript))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, "x", report.Final.Text)
}

func TestCacheWriteFailureIsReturned(t *testing.T) {
	runner := &scriptedRunner{succeed: func(text string) bool { return text == "good" }}
	fc := newStubCache()
	fc.err = errors.New("disk full")
	coord := newCoordinator(t, fc, runner, &stubOracle{replies: []string{"```go\ngood\n```"}}, &stubHistory{})

	report, err := coord.Run(context.Background(), domain.NewFragment("bad", domain.LanguageScript))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, domain.StatusSuccess, report.Status)
	assert.False(t, report.CacheWrite)
}

func TestCancelledContextStopsBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &scriptedRunner{succeed: func(string) bool { return false }}
	oracle := &stubOracle{}
	hist := &stubHistory{}
	coord := newCoordinator(t, newStubCache(), runner, oracle, hist)

	_, err := coord.Run(ctx, domain.NewFragment("x", domain.LanguageScript))
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, runner.calls, 1)
	assert.Empty(t, oracle.prompts)
	require.Len(t, hist.records, 1)
	assert.Equal(t, "x", hist.records[0].Command)
	assert.False(t, hist.records[0].Success)
}

func TestPromptAndExhaustedOutput(t *testing.T) {
	prompt := Prompt(domain.NewFragment("ls /x", domain.LanguageShell), "Shell Error: exit status 2")
	assert.Equal(t, "Fix this code. Don't explain. Only return valid, working code block.\n```sh\nls /x\n```\nThe error was:\n```\nShell Error: exit status 2\n```", prompt)
	assert.Equal(t, "All attempts failed after 3 retries.\nLast error:\nboom", ExhaustedOutput(3, "boom"))
}

func TestEndToEndRepairIsMemoized(t *testing.T) {
	fixes, err := cache.NewFixCache(filepath.Join(t.TempDir(), "fix_cache.json"))
	require.NoError(t, err)
	log := history.NewLog(history.LogOptions{})
	oracle := &stubOracle{replies: []string{"```python\nprint(1)\n```"}}
	coord, err := New(Options{
		Cache:   fixes,
		Filter:  security.NewDangerFilter(),
		Runner:  executor.NewRunner(executor.Options{Timeout: 5 * time.Second}),
		Oracle:  oracle,
		History: log,
	})
	require.NoError(t, err)

	report, err := coord.Run(context.Background(), domain.NewFragment("print(1/0)", domain.LanguageScript))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSuccess, report.Status)
	assert.Equal(t, "1", report.Output)
	assert.Equal(t, 2, report.Attempts)
	first := report.Outcomes[0]
	assert.Contains(t, first.Output, "Script Error:")

	fix, ok := fixes.Get("print(1/0)")
	require.True(t, ok)
	assert.Equal(t, "print(1)", fix)

	reloaded, err := cache.NewFixCache(fixes.Path())
	require.NoError(t, err)
	fix, ok = reloaded.Get("print(1/0)")
	require.True(t, ok)
	assert.Equal(t, "print(1)", fix)

	records := log.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)

	again, err := coord.Run(context.Background(), domain.NewFragment("print(1/0)", domain.LanguageScript))
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, 1, again.Attempts)
	assert.Equal(t, "1", again.Output)
}
