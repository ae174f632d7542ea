package history

import (
	"strings"

	"github.com/doeshing/vrelay/internal/ports"
)

// Backend names accepted in history.backend.
const (
	BackendSQLite = "sqlite"
	BackendJSONL  = "jsonl"
)

// NewRepository opens the configured backend. SQLite failures fall back to the
// jsonl file store next to the requested database.
func NewRepository(backend, path string, logger ports.Logger) ports.HistoryRepository {
	if strings.EqualFold(backend, BackendJSONL) {
		return NewFileStore(path)
	}
	store, err := NewSQLiteStore(path)
	if err == nil {
		return store
	}
	fallback := NewFileStore(jsonlPathFor(path))
	if logger != nil {
		logger.Warn("sqlite history unavailable, using jsonl", map[string]interface{}{
			"error": err.Error(),
			"path":  fallback.Path(),
		})
	}
	return fallback
}

func jsonlPathFor(dbPath string) string {
	if dbPath == "" {
		return ""
	}
	if strings.HasSuffix(dbPath, ".db") {
		return strings.TrimSuffix(dbPath, ".db") + ".jsonl"
	}
	return dbPath + ".jsonl"
}
