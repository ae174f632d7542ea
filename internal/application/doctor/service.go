package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

// ValidateFunc checks a loaded configuration.
type ValidateFunc func(domain.Config) error

// CacheOpener loads the fix cache at path.
type CacheOpener func(path string) (ports.FixCacheRepository, error)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider   ports.ConfigProvider
	Validate         ValidateFunc
	OpenCache        CacheOpener
	Runner           ports.Runner
	ContextCollector ports.ContextCollector
	LookPath         func(string) (string, error)
}

// Run executes checks and returns a report. The error is non-nil only when
// the configuration cannot be loaded at all.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("format version %s, %d model(s)", cfg.ConfigFormatVersion, len(cfg.Models))))

	if s.Validate != nil {
		if err := s.Validate(cfg); err != nil {
			checks = append(checks, fail("Config validation", err.Error()))
		} else {
			checks = append(checks, ok("Config validation", "consistent"))
		}
	}

	if s.OpenCache != nil {
		checks = append(checks, s.cacheCheck(cfg))
	}

	if s.Runner != nil {
		checks = append(checks, s.interpreterCheck(ctx))
	}

	checks = append(checks, s.shellCheck(cfg))

	if s.ContextCollector != nil {
		if snapshot, err := s.ContextCollector.Collect(ctx, cfg); err == nil {
			checks = append(checks, ok("Context collector", fmt.Sprintf("detected tools: %d", len(snapshot.AvailableTools))))
		} else {
			checks = append(checks, warn("Context collector", err.Error()))
		}
	}

	checks = append(checks, apiCheck(cfg))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) cacheCheck(cfg domain.Config) domain.HealthCheck {
	cache, err := s.OpenCache(cfg.Cache.Path)
	if err != nil {
		return fail("Fix cache", err.Error())
	}
	return ok("Fix cache", fmt.Sprintf("%d entries at %s", cache.Len(), cache.Path()))
}

func (s *Service) interpreterCheck(ctx context.Context) domain.HealthCheck {
	outcome := s.Runner.Run(ctx, domain.NewFragment(`print("ok")`, domain.LanguageScript))
	if !outcome.Success {
		return fail("Interpreter", strings.TrimSpace(outcome.Output))
	}
	return ok("Interpreter", fmt.Sprintf("smoke run in %s", outcome.Duration.Round(time.Millisecond)))
}

func (s *Service) shellCheck(cfg domain.Config) domain.HealthCheck {
	shell := cfg.GetExecutionShell()
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		return warn("Shell", "no shell configured and $SHELL unset")
	}
	lookPath := s.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(shell)
	if err != nil {
		return fail("Shell", fmt.Sprintf("%s not found", shell))
	}
	return ok("Shell", path)
}

func apiCheck(cfg domain.Config) domain.HealthCheck {
	var missing []string
	for _, model := range cfg.Models {
		if model.AuthEnvVar == "" {
			continue
		}
		if os.Getenv(model.AuthEnvVar) == "" {
			missing = append(missing, fmt.Sprintf("%s (%s)", model.AuthEnvVar, model.Name))
		}
	}
	if strings.EqualFold(cfg.Speech.Source, "mic") && cfg.Speech.TranscriptionEnv != "" && os.Getenv(cfg.Speech.TranscriptionEnv) == "" {
		missing = append(missing, fmt.Sprintf("%s (transcription)", cfg.Speech.TranscriptionEnv))
	}
	if len(missing) == 0 {
		return ok("API keys", "detected for configured providers")
	}

	model, err := cfg.GetDefaultModel()
	if err == nil && model.AuthEnvVar != "" && os.Getenv(model.AuthEnvVar) == "" {
		return fail("API keys", "missing "+strings.Join(missing, ", "))
	}
	return warn("API keys", "missing "+strings.Join(missing, ", "))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
