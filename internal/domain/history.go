package domain

import "time"

// HistoryRecord captures one terminal coordinator outcome.
type HistoryRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Result    string    `json:"result"`
	Success   bool      `json:"success"`
}

// FixCacheEntry is one memoized repair.
type FixCacheEntry struct {
	Original string `json:"original"`
	Fixed    string `json:"fixed"`
}

// SessionSummary aggregates one listen session.
type SessionSummary struct {
	Started      time.Time
	Duration     time.Duration
	CommandCount int
	Succeeded    int
}

// SuccessRate returns the fraction of successful commands in [0, 1].
func (s SessionSummary) SuccessRate() float64 {
	if s.CommandCount == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.CommandCount)
}
