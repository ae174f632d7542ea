package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/vrelay/internal/domain"
)

// TestConfig_GetDefaultModel tests retrieving the default model
func TestConfig_GetDefaultModel(t *testing.T) {
	tests := []struct {
		name        string
		config      domain.Config
		wantError   bool
		wantModelID string
	}{
		{
			name: "returns default model successfully",
			config: domain.Config{
				Preferences: domain.Preferences{DefaultModel: "groq"},
				Models: []domain.ModelDefinition{
					{Name: "gpt", ModelID: "gpt-4o-mini"},
					{Name: "groq", ModelID: "llama-3.3-70b-versatile"},
				},
			},
			wantModelID: "llama-3.3-70b-versatile",
		},
		{
			name: "falls back to first model when no default configured",
			config: domain.Config{
				Models: []domain.ModelDefinition{
					{Name: "gpt", ModelID: "gpt-4o-mini"},
				},
			},
			wantModelID: "gpt-4o-mini",
		},
		{
			name: "returns error when default model not found",
			config: domain.Config{
				Preferences: domain.Preferences{DefaultModel: "nonexistent"},
				Models:      []domain.ModelDefinition{{Name: "gpt"}},
			},
			wantError: true,
		},
		{
			name:      "returns error when no models",
			config:    domain.Config{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := tt.config.GetDefaultModel()

			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if model.ModelID != tt.wantModelID {
				t.Errorf("got model ID %s, want %s", model.ModelID, tt.wantModelID)
			}
		})
	}
}

func TestConfig_GetDefaultModelNoModels(t *testing.T) {
	cfg := domain.Config{}
	if _, err := cfg.GetDefaultModel(); !errors.Is(err, domain.ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}
}

func TestConfig_ExecutionDefaults(t *testing.T) {
	cfg := domain.Config{}

	if got := cfg.GetMaxRetries(); got != domain.DefaultMaxRetries {
		t.Errorf("GetMaxRetries() = %d, want %d", got, domain.DefaultMaxRetries)
	}
	if got := cfg.GetExecutionTimeout(); got != 30*time.Second {
		t.Errorf("GetExecutionTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetOracleTimeout(); got != domain.DefaultOracleTimeout {
		t.Errorf("GetOracleTimeout() = %v", got)
	}
	if got := cfg.GetShutdownTimeout(); got != domain.DefaultShutdownTimeout {
		t.Errorf("GetShutdownTimeout() = %v", got)
	}
	if got := cfg.GetExecutionShell(); got != "" {
		t.Errorf("GetExecutionShell() = %q, want empty", got)
	}
}

func TestConfig_ExecutionOverrides(t *testing.T) {
	cfg := domain.Config{
		Execution: domain.ExecutionSettings{Shell: "/bin/bash", TimeoutSeconds: 5, MaxRetries: 4},
		Session:   domain.SessionSettings{ShutdownTimeout: "750ms"},
	}

	if got := cfg.GetMaxRetries(); got != 4 {
		t.Errorf("GetMaxRetries() = %d, want 4", got)
	}
	if got := cfg.GetExecutionTimeout(); got != 5*time.Second {
		t.Errorf("GetExecutionTimeout() = %v, want 5s", got)
	}
	if got := cfg.GetShutdownTimeout(); got != 750*time.Millisecond {
		t.Errorf("GetShutdownTimeout() = %v, want 750ms", got)
	}
	if got := cfg.GetExecutionShell(); got != "/bin/bash" {
		t.Errorf("GetExecutionShell() = %q", got)
	}
}

func TestConfig_GetExitPhrases(t *testing.T) {
	tests := []struct {
		name    string
		phrases []string
		want    []string
	}{
		{name: "defaults", want: []string{"exit", "quit", "stop"}},
		{name: "normalises custom phrases", phrases: []string{" Bye ", "", "ENOUGH"}, want: []string{"bye", "enough"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.Config{Speech: domain.SpeechSettings{ExitPhrases: tt.phrases}}
			if diff := cmp.Diff(tt.want, cfg.GetExitPhrases()); diff != "" {
				t.Errorf("GetExitPhrases() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestConfig_ValidateConsistency tests configuration consistency validation
func TestConfig_ValidateConsistency(t *testing.T) {
	tests := []struct {
		name      string
		config    domain.Config
		wantError bool
	}{
		{
			name: "valid configuration",
			config: domain.Config{
				Preferences: domain.Preferences{DefaultModel: "gpt"},
				Models:      []domain.ModelDefinition{{Name: "gpt"}, {Name: "gemini"}},
			},
		},
		{
			name: "default model missing",
			config: domain.Config{
				Preferences: domain.Preferences{DefaultModel: "claude"},
				Models:      []domain.ModelDefinition{{Name: "gpt"}},
			},
			wantError: true,
		},
		{
			name: "duplicate model names",
			config: domain.Config{
				Models: []domain.ModelDefinition{{Name: "gpt"}, {Name: "gpt"}},
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateConsistency()
			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestModelDefinition_ResolvedProvider(t *testing.T) {
	tests := []struct {
		model domain.ModelDefinition
		want  domain.ProviderKind
	}{
		{domain.ModelDefinition{Provider: "Gemini"}, domain.ProviderGemini},
		{domain.ModelDefinition{Endpoint: "https://api.groq.com/openai/v1/chat/completions"}, domain.ProviderOpenAI},
		{domain.ModelDefinition{Endpoint: "https://generativelanguage.googleapis.com"}, domain.ProviderGemini},
		{domain.ModelDefinition{Endpoint: "https://api.anthropic.com/v1/messages"}, domain.ProviderHTTP},
		{domain.ModelDefinition{}, domain.ProviderOpenAI},
	}

	for _, tt := range tests {
		if got := tt.model.ResolvedProvider(); got != tt.want {
			t.Errorf("ResolvedProvider(%+v) = %s, want %s", tt.model, got, tt.want)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	for tag, want := range map[string]domain.Language{
		"python": domain.LanguageScript,
		"go":     domain.LanguageScript,
		"bash":   domain.LanguageShell,
		"SH":     domain.LanguageShell,
	} {
		got, ok := domain.ParseLanguage(tag)
		if !ok || got != want {
			t.Errorf("ParseLanguage(%q) = %q, %v; want %q", tag, got, ok, want)
		}
	}
	if _, ok := domain.ParseLanguage("cobol"); ok {
		t.Error("ParseLanguage(cobol) should not resolve")
	}
}

func TestCodeFragment_WithTextKeepsOriginal(t *testing.T) {
	original := domain.NewFragment("  print(1/0)\n", domain.LanguageScript)
	repaired := original.WithText("print(1)")

	if original.Text != "print(1/0)" {
		t.Fatalf("original mutated: %q", original.Text)
	}
	if repaired.Text != "print(1)" || repaired.Language != domain.LanguageScript {
		t.Fatalf("unexpected repair %+v", repaired)
	}
}
