package history

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

// LogOptions configures a Log.
type LogOptions struct {
	// MaxRecords caps the in-memory window; the oldest records are evicted.
	MaxRecords int
	// Store, when set, receives every record.
	Store  ports.HistoryRepository
	Logger ports.Logger
	Now    func() time.Time
}

// Log is the in-memory execution history of one process. Records are also
// forwarded to the persistent store, which keeps everything.
type Log struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
	max     int
	store   ports.HistoryRepository
	logger  ports.Logger
	now     func() time.Time
	started time.Time
}

// NewLog returns an empty Log.
func NewLog(opts LogOptions) *Log {
	capacity := opts.MaxRecords
	if capacity <= 0 {
		capacity = domain.DefaultMaxHistoryRecords
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Log{
		max:     capacity,
		store:   opts.Store,
		logger:  opts.Logger,
		now:     now,
		started: now(),
	}
}

// Record appends a terminal outcome.
func (l *Log) Record(command, result string, success bool) domain.HistoryRecord {
	record := domain.HistoryRecord{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Command:   command,
		Result:    result,
		Success:   success,
	}

	l.mu.Lock()
	l.records = append(l.records, record)
	if overflow := len(l.records) - l.max; overflow > 0 {
		l.records = append([]domain.HistoryRecord(nil), l.records[overflow:]...)
	}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Save(record); err != nil && l.logger != nil {
			l.logger.Warn("history persist failed", map[string]interface{}{"error": err.Error(), "path": l.store.Path()})
		}
	}
	return record
}

// Relevant ranks records by the number of distinct lower-cased words their
// command shares with query. Ties keep insertion order.
func (l *Log) Relevant(query string, limit int) []domain.HistoryRecord {
	if limit <= 0 {
		return nil
	}
	queryTokens := tokenSet(query)

	l.mu.Lock()
	type scored struct {
		record domain.HistoryRecord
		score  int
	}
	ranked := make([]scored, len(l.records))
	for i, record := range l.records {
		ranked[i] = scored{record: record, score: sharedTokens(queryTokens, record.Command)}
	}
	l.mu.Unlock()

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]domain.HistoryRecord, len(ranked))
	for i, s := range ranked {
		out[i] = s.record
	}
	return out
}

// Records returns a copy of the in-memory window, oldest first.
func (l *Log) Records() []domain.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.HistoryRecord(nil), l.records...)
}

// Len returns the number of records held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Summary aggregates the records of this process.
func (l *Log) Summary() domain.SessionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	summary := domain.SessionSummary{
		Started:      l.started,
		Duration:     l.now().Sub(l.started),
		CommandCount: len(l.records),
	}
	for _, record := range l.records {
		if record.Success {
			summary.Succeeded++
		}
	}
	return summary
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func sharedTokens(query map[string]struct{}, command string) int {
	count := 0
	for token := range tokenSet(command) {
		if _, ok := query[token]; ok {
			count++
		}
	}
	return count
}

var _ ports.ExecutionHistory = (*Log)(nil)
