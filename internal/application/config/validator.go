package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/vrelay/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if len(cfg.Models) == 0 {
		return errors.New("at least one model must be configured")
	}
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	for i, model := range cfg.Models {
		if err := validateModel(model); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
	}
	if err := validateExecution(cfg.Execution); err != nil {
		return err
	}
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	if err := validateSpeech(cfg.Speech); err != nil {
		return err
	}
	if err := validateSession(cfg.Session); err != nil {
		return err
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	if cfg.Context.MaxFiles < 0 {
		return fmt.Errorf("context.max_files must be >= 0")
	}
	if cfg.Oracle.TimeoutSeconds < 0 {
		return fmt.Errorf("oracle.timeout must be >= 0")
	}
	return nil
}

func validateModel(model domain.ModelDefinition) error {
	if model.Name == "" {
		return errors.New("name must be set")
	}
	switch model.ResolvedProvider() {
	case domain.ProviderOpenAI, domain.ProviderGemini:
	case domain.ProviderHTTP:
		if model.Endpoint == "" {
			return fmt.Errorf("%s: endpoint is required for http models", model.Name)
		}
	default:
		return fmt.Errorf("%s: provider must be openai|gemini|http, got %s", model.Name, model.Provider)
	}
	if model.Temperature < 0 || model.Temperature > 2 {
		return fmt.Errorf("%s: temperature must be within [0, 2]", model.Name)
	}
	if model.MaxTokens < 0 {
		return fmt.Errorf("%s: max_tokens must be >= 0", model.Name)
	}
	return nil
}

func validateExecution(exec domain.ExecutionSettings) error {
	if exec.TimeoutSeconds < 0 {
		return fmt.Errorf("execution.timeout must be >= 0")
	}
	if exec.MaxRetries < 0 {
		return fmt.Errorf("execution.max_retries must be >= 0")
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	switch strings.ToLower(history.Backend) {
	case "", "sqlite", "jsonl":
	default:
		return fmt.Errorf("history.backend must be sqlite|jsonl, got %s", history.Backend)
	}
	if history.MaxRecords < 0 {
		return fmt.Errorf("history.max_records must be >= 0")
	}
	return nil
}

func validateSpeech(speech domain.SpeechSettings) error {
	switch strings.ToLower(speech.Source) {
	case "", "stdin", "mic":
	default:
		return fmt.Errorf("speech.source must be stdin|mic, got %s", speech.Source)
	}
	if speech.QueueSize < 0 {
		return fmt.Errorf("speech.queue_size must be >= 0")
	}
	if speech.MaxRecordSeconds < 0 {
		return fmt.Errorf("speech.max_record_seconds must be >= 0")
	}
	return nil
}

func validateSession(session domain.SessionSettings) error {
	if session.ShutdownTimeout == "" {
		return nil
	}
	d, err := time.ParseDuration(session.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("session.shutdown_timeout invalid: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("session.shutdown_timeout must be positive")
	}
	return nil
}

func validateLogging(logging domain.LoggingSettings) error {
	switch strings.ToLower(logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %s", logging.Level)
	}
	switch strings.ToLower(logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console|json, got %s", logging.Format)
	}
	return nil
}
