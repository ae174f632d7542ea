package domain

import (
	"fmt"
	"strings"
	"time"
)

// Language tags the interpreter a fragment is written for.
type Language string

const (
	// LanguageScript is an interpreted snippet run in the embedded interpreter.
	LanguageScript Language = "script"
	// LanguageShell is a command line run by the host shell.
	LanguageShell Language = "shell"
)

// ParseLanguage maps fence tags and CLI flags onto a Language.
func ParseLanguage(tag string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "script", "go", "golang", "python", "py":
		return LanguageScript, true
	case "shell", "sh", "bash", "zsh":
		return LanguageShell, true
	default:
		return "", false
	}
}

// CodeFragment is a piece of source text plus its language tag.
// Fragments are values: a repair produces a new fragment.
type CodeFragment struct {
	Text     string
	Language Language
}

// NewFragment builds a fragment with surrounding whitespace trimmed.
func NewFragment(text string, lang Language) CodeFragment {
	return CodeFragment{Text: strings.TrimSpace(text), Language: lang}
}

// WithText returns a copy of f carrying text instead of f.Text.
func (f CodeFragment) WithText(text string) CodeFragment {
	return CodeFragment{Text: strings.TrimSpace(text), Language: f.Language}
}

// Key is the fix cache key of the fragment.
func (f CodeFragment) Key() string {
	return strings.TrimSpace(f.Text)
}

// FailureKind classifies why an attempt did not succeed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureExecution FailureKind = "execution"
	FailureTimeout   FailureKind = "timeout"
	FailurePolicy    FailureKind = "policy"
)

// ExecutionOutcome is the result of one run attempt.
type ExecutionOutcome struct {
	Output      string        `json:"output"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	MemoryDelta int64         `json:"memory_delta"`
	Failure     FailureKind   `json:"failure,omitempty"`
}

// Failed builds a failed outcome whose output carries the error marker.
func Failed(kind FailureKind, class string, err error) ExecutionOutcome {
	return ExecutionOutcome{
		Output:  fmt.Sprintf("%s %s %v", class, ErrorMarker, err),
		Success: false,
		Failure: kind,
	}
}

// ReportStatus is the terminal state reached by the retry coordinator.
type ReportStatus string

const (
	StatusSuccess   ReportStatus = "success"
	StatusExhausted ReportStatus = "exhausted"
	StatusBlocked   ReportStatus = "blocked"
)

// Report summarises one coordinator invocation.
type Report struct {
	RunID       string
	Original    CodeFragment
	Final       CodeFragment
	Status      ReportStatus
	Output      string
	Attempts    int
	OracleCalls int
	FromCache   bool
	CacheWrite  bool
	Outcomes    []ExecutionOutcome
}

// Succeeded reports whether the fragment ended in the success state.
func (r Report) Succeeded() bool {
	return r.Status == StatusSuccess
}

// LastOutcome returns the outcome of the final attempt, if any ran.
func (r Report) LastOutcome() (ExecutionOutcome, bool) {
	if len(r.Outcomes) == 0 {
		return ExecutionOutcome{}, false
	}
	return r.Outcomes[len(r.Outcomes)-1], true
}
