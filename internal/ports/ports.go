// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The application core (internal/application) depends only on these contracts;
// concrete adapters live in internal/infrastructure and are wired together in
// internal/app. Tests swap any adapter for a stub.
package ports

import (
	"context"

	"github.com/doeshing/vrelay/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.vrelay/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ContextCollector gathers workspace and platform facts for oracle prompts.
type ContextCollector interface {
	Collect(context.Context, domain.Config) (domain.ContextSnapshot, error)
}

// FixCache maps a broken fragment to its last verified repair.
type FixCache interface {
	Get(original string) (string, bool)
	Add(original, fixed string) error
}

// FixCacheRepository adds the maintenance operations used by the CLI.
type FixCacheRepository interface {
	FixCache
	Entries() []domain.FixCacheEntry
	Len() int
	Clear() error
	Path() string
}

// DangerFilter rejects known-destructive fragments before they run.
type DangerFilter interface {
	IsDangerous(text string) bool
	Match(text string) (pattern string, matched bool)
}

// Runner executes one fragment under a time budget and classifies the result.
type Runner interface {
	Run(ctx context.Context, fragment domain.CodeFragment) domain.ExecutionOutcome
}

// Oracle is a conversational language model: free text in, free text out.
type Oracle interface {
	Name() string
	Chat(ctx context.Context, prompt string) (string, error)
}

// ProviderFactory builds AI provider instances based on model definitions.
type ProviderFactory interface {
	ForModel(domain.ModelDefinition) (Provider, error)
}

// Provider performs one stateless chat completion.
type Provider interface {
	Name() string
	Model() domain.ModelDefinition
	Generate(context.Context, ProviderRequest) (ProviderResponse, error)
}

// ProviderRequest carries the full conversation to send.
type ProviderRequest struct {
	Messages []domain.PromptMessage
}

// ProviderResponse holds the raw assistant reply.
type ProviderResponse struct {
	Reply string
}

// ExecutionHistory is the append-only log of terminal outcomes.
type ExecutionHistory interface {
	Record(command, result string, success bool) domain.HistoryRecord
	Relevant(query string, limit int) []domain.HistoryRecord
}

// HistoryRepository persists history records across sessions.
type HistoryRepository interface {
	Save(domain.HistoryRecord) error
	Records(limit int, search string) ([]domain.HistoryRecord, error)
	Clear() error
	ExportJSON(dest string) error
	Path() string
}

// CommandSource yields recognized utterances. An empty string means nothing was
// heard; io.EOF means the source is exhausted.
type CommandSource interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Transcriber turns mono 16 kHz PCM samples into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// LinkOpener handles URLs found in oracle replies.
type LinkOpener interface {
	Open(url string) error
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
