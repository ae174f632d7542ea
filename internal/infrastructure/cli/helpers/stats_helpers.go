package helpers

import (
	"sort"
	"strings"

	"github.com/doeshing/vrelay/internal/domain"
)

// CommandStatistic represents usage statistics for a command
type CommandStatistic struct {
	Command string
	Count   int
}

// CalculateTopCommands returns the top N most frequently used commands.
// A limit of 0 or less returns all of them.
func CalculateTopCommands(commandFrequency map[string]int, limit int) []CommandStatistic {
	stats := make([]CommandStatistic, 0, len(commandFrequency))
	for cmd, count := range commandFrequency {
		stats = append(stats, CommandStatistic{Command: cmd, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Command < stats[j].Command
		}
		return stats[i].Count > stats[j].Count
	})

	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// CalculateSuccessRate calculates the success rate as a percentage
func CalculateSuccessRate(successfulCount int, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(successfulCount) / float64(total) * 100.0
}

type undoHint struct {
	marker string
	hint   string
}

// Markers are matched against the lower-cased fragment text, shell and
// interpreted fragments alike.
var undoHints = []undoHint{
	{marker: "git ", hint: "Use `git status`, `git reflog`, or `git restore` to inspect and undo git changes."},
	{marker: "rm ", hint: "Restore deleted files via backups or `git checkout -- <path>` if tracked."},
	{marker: "os.remove", hint: "Files removed by scripts are gone; check backups before repeating."},
	{marker: "writefile", hint: "Scripts overwrote files; compare with version control before repeating."},
	{marker: "docker ", hint: "Use `docker ps -a` and `docker logs` to review container history before repeating."},
	{marker: "kill ", hint: "Processes stopped by commands may need a manual restart."},
}

// DeriveUndoHints returns a sorted list of unique hints for side effects seen
// in successful history records.
func DeriveUndoHints(records []domain.HistoryRecord) []string {
	seen := make(map[string]bool)
	for _, record := range records {
		if !record.Success {
			continue
		}
		command := strings.ToLower(record.Command)
		for _, h := range undoHints {
			if strings.Contains(command, h.marker) {
				seen[h.hint] = true
			}
		}
	}

	hints := make([]string, 0, len(seen))
	for hint := range seen {
		hints = append(hints, hint)
	}
	sort.Strings(hints)
	return hints
}
