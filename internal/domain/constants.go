package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
	// DataFilePermissions is the permission for cache and history files (rw-r--r--)
	DataFilePermissions = 0o644
)

// Timeout and duration constants
const (
	// DefaultExecutionTimeout is the wall-clock budget of one run attempt
	DefaultExecutionTimeout = 30 * time.Second
	// DefaultOracleTimeout bounds a single repair oracle round trip
	DefaultOracleTimeout = 60 * time.Second
	// DefaultShutdownTimeout bounds the join of the listen loop goroutines
	DefaultShutdownTimeout = 2 * time.Second
	// DefaultQueuePollInterval is how long the worker waits on an empty queue
	DefaultQueuePollInterval = 500 * time.Millisecond
	// DefaultToolProbeTimeout is the timeout for probing external helper tools
	DefaultToolProbeTimeout = 2 * time.Second
)

// Limit constants
const (
	// DefaultMaxRetries is the number of execution attempts per fragment
	DefaultMaxRetries = 3
	// DefaultMaxHistoryRecords caps the in-memory execution history window
	DefaultMaxHistoryRecords = 1000
	// DefaultRelevantHistory is how many related records are fed to the oracle
	DefaultRelevantHistory = 5
	// DefaultQueueSize is the capacity of the utterance queue
	DefaultQueueSize = 16
	// DefaultMaxContextFiles is the number of workspace files listed for the oracle
	DefaultMaxContextFiles = 20
	// DefaultMaxRecordSeconds caps a single microphone utterance
	DefaultMaxRecordSeconds = 10
	// DefaultMaxTokens is the default maximum number of tokens
	DefaultMaxTokens = 1024
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultHistorySearchLimit is the default number of search results to return
	DefaultHistorySearchLimit = 50
	// MaxHistoryAnalysisRecords is the maximum number of records to analyze
	MaxHistoryAnalysisRecords = 1000
)

// Markers written into captured output.
const (
	// ErrorMarker flags a failed attempt inside captured output.
	ErrorMarker = "Error:"
	// ExhaustedMarker prefixes the terminal report once every attempt failed.
	ExhaustedMarker = "All attempts failed"
	// BlockedMessage is the output of a fragment refused by the danger filter.
	BlockedMessage = "Potentially dangerous operation detected and blocked"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
