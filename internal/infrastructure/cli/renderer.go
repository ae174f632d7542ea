package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/doeshing/vrelay/internal/application/relay"
	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/infrastructure/cli/helpers"
)

const markdownWrap = 80

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	codeStyle    = lipgloss.NewStyle().PaddingLeft(2).BorderLeft(true).BorderStyle(lipgloss.ThickBorder())
)

// Renderer prints relay activity for a human operator.
type Renderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
}

// NewRenderer writes to out. Plain disables markdown rendering of replies.
func NewRenderer(out io.Writer, plain bool) *Renderer {
	r := &Renderer{out: out}
	if !plain {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(markdownWrap),
		)
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// Heard echoes an accepted utterance.
func (r *Renderer) Heard(utterance string) {
	fmt.Fprintln(r.out, mutedStyle.Render("heard: "+utterance))
}

// Reply prints the oracle reply, as markdown when possible.
func (r *Renderer) Reply(reply string) {
	if strings.TrimSpace(reply) == "" {
		return
	}
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(reply); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprintln(r.out, reply)
}

// Result prints a handled utterance: reply, per-fragment reports and links.
func (r *Renderer) Result(result relay.Result, err error) {
	r.Reply(result.Reply)
	for i, report := range result.Reports {
		r.Report(i+1, report)
	}
	for _, link := range result.Links {
		fmt.Fprintf(r.out, "%s %s\n", mutedStyle.Render("link:"), link)
	}
	if err != nil {
		fmt.Fprintln(r.out, failureStyle.Render("error: ")+err.Error())
	}
}

// Report prints one coordinator report.
func (r *Renderer) Report(index int, report domain.Report) {
	fmt.Fprintf(r.out, "%s %s\n", statusBadge(report), r.reportMeta(index, report))
	if report.Final.Text != report.Original.Text && report.Final.Text != "" {
		fmt.Fprintln(r.out, mutedStyle.Render("repaired to:"))
		fmt.Fprintln(r.out, codeStyle.Render(report.Final.Text))
	}
	if out := strings.TrimRight(report.Output, "\n"); out != "" {
		fmt.Fprintln(r.out, out)
	}
}

func (r *Renderer) reportMeta(index int, report domain.Report) string {
	parts := []string{
		fmt.Sprintf("fragment %d (%s)", index, report.Original.Language),
		fmt.Sprintf("attempts %d", report.Attempts),
	}
	if last, ok := report.LastOutcome(); ok {
		parts = append(parts, last.Duration.Round(time.Millisecond).String())
		parts = append(parts, "rss "+formatDelta(last.MemoryDelta))
	}
	if report.FromCache {
		parts = append(parts, "cached fix")
	}
	return mutedStyle.Render(strings.Join(parts, " | "))
}

func statusBadge(report domain.Report) string {
	switch report.Status {
	case domain.StatusSuccess:
		return successStyle.Render("[OK]")
	case domain.StatusBlocked:
		return blockedStyle.Render("[BLOCKED]")
	default:
		return failureStyle.Render("[FAILED]")
	}
}

func formatDelta(delta int64) string {
	if delta < 0 {
		return "-" + humanize.IBytes(uint64(-delta))
	}
	return "+" + humanize.IBytes(uint64(delta))
}

// Summary prints session statistics on shutdown.
func (r *Renderer) Summary(summary domain.SessionSummary) {
	fmt.Fprintln(r.out, headerStyle.Render("Session summary"))
	fmt.Fprintf(r.out, "Duration: %s\n", summary.Duration.Round(time.Second))
	fmt.Fprintf(r.out, "Commands: %d\n", summary.CommandCount)
	fmt.Fprintf(r.out, "Success rate: %.1f%%\n", summary.SuccessRate()*100)
}

// HealthReport prints doctor checks.
func (r *Renderer) HealthReport(report domain.HealthReport) {
	for _, check := range report.Checks {
		var badge string
		switch check.Status {
		case domain.HealthOK:
			badge = successStyle.Render("[OK]")
		case domain.HealthWarn:
			badge = blockedStyle.Render("[WARN]")
		default:
			badge = failureStyle.Render("[ERROR]")
		}
		fmt.Fprintf(r.out, "%s %s - %s\n", badge, check.Name, check.Details)
	}
}

// History prints history records, newest first as returned by the store.
func (r *Renderer) History(records []domain.HistoryRecord) {
	for _, rec := range records {
		status := successStyle.Render("ok  ")
		if !rec.Success {
			status = failureStyle.Render("fail")
		}
		fmt.Fprintf(r.out, "%s | %s | %s\n",
			mutedStyle.Render(rec.Timestamp.Format(domain.TimestampFormat)),
			status,
			firstLine(rec.Command))
	}
}

// HistoryStats prints the success rate and most frequent commands.
func (r *Renderer) HistoryStats(records []domain.HistoryRecord) {
	freq := make(map[string]int)
	succeeded := 0
	for _, rec := range records {
		freq[firstLine(rec.Command)]++
		if rec.Success {
			succeeded++
		}
	}

	fmt.Fprintln(r.out, headerStyle.Render("History"))
	fmt.Fprintf(r.out, "Entries analyzed: %d\nSuccess rate: %.1f%%\n",
		len(records), helpers.CalculateSuccessRate(succeeded, len(records)))
	if len(records) > 0 {
		oldest := records[len(records)-1].Timestamp
		fmt.Fprintf(r.out, "Oldest entry: %s\n", humanize.Time(oldest))
	}

	fmt.Fprintln(r.out, "Top commands:")
	for _, stat := range helpers.CalculateTopCommands(freq, 5) {
		fmt.Fprintf(r.out, "  %s (%d)\n", stat.Command, stat.Count)
	}

	if hints := helpers.DeriveUndoHints(records); len(hints) > 0 {
		fmt.Fprintln(r.out, "Undo hints:")
		for _, hint := range hints {
			fmt.Fprintf(r.out, "  - %s\n", hint)
		}
	}
}

func firstLine(text string) string {
	line, _, found := strings.Cut(strings.TrimSpace(text), "\n")
	if found {
		return line + " ..."
	}
	return line
}

// syncWriter serializes writes from the session producer and worker.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSyncWriter(w io.Writer) *syncWriter {
	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
