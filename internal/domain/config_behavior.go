package domain

import (
	"fmt"
	"strings"
	"time"
)

// GetDefaultModel retrieves the default model definition from configuration.
// With no default set, the first configured model is used.
func (c *Config) GetDefaultModel() (ModelDefinition, error) {
	if len(c.Models) == 0 {
		return ModelDefinition{}, ErrNoModel
	}
	if c.Preferences.DefaultModel == "" {
		return c.Models[0], nil
	}
	if model, ok := c.FindModelByName(c.Preferences.DefaultModel); ok {
		return model, nil
	}
	return ModelDefinition{}, fmt.Errorf("default model %s not found in configuration", c.Preferences.DefaultModel)
}

// FindModelByName searches for a model by its name.
func (c *Config) FindModelByName(name string) (ModelDefinition, bool) {
	for _, model := range c.Models {
		if model.Name == name {
			return model, true
		}
	}
	return ModelDefinition{}, false
}

// HasModel checks if a model with the given name exists in the configuration
func (c *Config) HasModel(name string) bool {
	_, exists := c.FindModelByName(name)
	return exists
}

// GetExecutionShell returns the host shell used for shell fragments.
// "auto" and empty defer to the executor's own detection.
func (c *Config) GetExecutionShell() string {
	if strings.EqualFold(c.Execution.Shell, "auto") {
		return ""
	}
	return c.Execution.Shell
}

// GetExecutionTimeout returns the wall-clock budget of one attempt.
func (c *Config) GetExecutionTimeout() time.Duration {
	if c.Execution.TimeoutSeconds <= 0 {
		return DefaultExecutionTimeout
	}
	return time.Duration(c.Execution.TimeoutSeconds) * time.Second
}

// GetMaxRetries returns the number of execution attempts per fragment.
func (c *Config) GetMaxRetries() int {
	if c.Execution.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.Execution.MaxRetries
}

// GetOracleTimeout bounds a single oracle round trip.
func (c *Config) GetOracleTimeout() time.Duration {
	if c.Oracle.TimeoutSeconds <= 0 {
		return DefaultOracleTimeout
	}
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// GetMaxHistoryRecords returns the in-memory history window.
func (c *Config) GetMaxHistoryRecords() int {
	if c.History.MaxRecords <= 0 {
		return DefaultMaxHistoryRecords
	}
	return c.History.MaxRecords
}

// GetQueueSize returns the utterance queue capacity.
func (c *Config) GetQueueSize() int {
	if c.Speech.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return c.Speech.QueueSize
}

// GetExitPhrases returns the lower-cased phrases that end a session.
func (c *Config) GetExitPhrases() []string {
	phrases := c.Speech.ExitPhrases
	if len(phrases) == 0 {
		phrases = []string{"exit", "quit", "stop"}
	}
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if p := strings.ToLower(strings.TrimSpace(phrase)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetShutdownTimeout bounds the join of session goroutines.
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.Session.ShutdownTimeout == "" {
		return DefaultShutdownTimeout
	}
	d, err := time.ParseDuration(c.Session.ShutdownTimeout)
	if err != nil || d <= 0 {
		return DefaultShutdownTimeout
	}
	return d
}

// GetMaxContextFiles returns the maximum number of files to include in context
func (c *Config) GetMaxContextFiles() int {
	if c.Context.MaxFiles <= 0 {
		return DefaultMaxContextFiles
	}
	return c.Context.MaxFiles
}

// GetMaxRecordDuration caps one microphone utterance.
func (c *Config) GetMaxRecordDuration() time.Duration {
	if c.Speech.MaxRecordSeconds <= 0 {
		return DefaultMaxRecordSeconds * time.Second
	}
	return time.Duration(c.Speech.MaxRecordSeconds) * time.Second
}

// ValidateConsistency checks the internal consistency of the configuration
func (c *Config) ValidateConsistency() error {
	if c.Preferences.DefaultModel != "" && !c.HasModel(c.Preferences.DefaultModel) {
		return fmt.Errorf("default model %s does not exist in models list", c.Preferences.DefaultModel)
	}
	seen := make(map[string]bool, len(c.Models))
	for _, model := range c.Models {
		if seen[model.Name] {
			return fmt.Errorf("model %s declared twice", model.Name)
		}
		seen[model.Name] = true
	}
	return nil
}
