package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	rootassets "github.com/doeshing/vrelay/assets"
	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/pkg/filesystem"
	"github.com/doeshing/vrelay/internal/ports"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "VRELAY_CONFIG"

// FileLoader loads YAML configuration from ~/.vrelay/config.yaml (overridable via VRELAY_CONFIG).
// On first use the embedded default configuration is written out.
type FileLoader struct {
	overridePath string
	envFiles     []string
}

// NewFileLoader builds a new loader. An empty path defers to VRELAY_CONFIG and
// then the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{
		overridePath: path,
		envFiles:     []string{".env", filepath.Join(filesystem.AppDir(), ".env")},
	}
}

// WithEnvFiles replaces the .env files consulted before loading.
func (l *FileLoader) WithEnvFiles(paths ...string) *FileLoader {
	l.envFiles = paths
	return l
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	if err := l.loadEnvFiles(); err != nil {
		return domain.Config{}, err
	}

	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
		data = rootassets.DefaultConfigYAML
	}

	cfg, err := Parse(data)
	if err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the config file location.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.AppDir(), "config.yaml")
}

// Parse decodes YAML and fills defaults.
func Parse(data []byte) (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, err
	}
	return hydrateDefaults(cfg), nil
}

// Default returns the embedded default configuration.
func Default() domain.Config {
	cfg, err := Parse(rootassets.DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// Marshal renders cfg as YAML.
func Marshal(cfg domain.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// loadEnvFiles exports variables from existing .env files without overriding
// the process environment.
func (l *FileLoader) loadEnvFiles() error {
	for _, path := range l.envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, rootassets.DefaultConfigYAML, domain.SecureFilePermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Preferences.DefaultModel == "" && len(cfg.Models) > 0 {
		cfg.Preferences.DefaultModel = cfg.Models[0].Name
	}
	if cfg.Execution.TimeoutSeconds == 0 {
		cfg.Execution.TimeoutSeconds = int(domain.DefaultExecutionTimeout.Seconds())
	}
	if cfg.Execution.MaxRetries == 0 {
		cfg.Execution.MaxRetries = domain.DefaultMaxRetries
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = "sqlite"
	}
	if cfg.History.MaxRecords == 0 {
		cfg.History.MaxRecords = domain.DefaultMaxHistoryRecords
	}
	if cfg.Speech.Source == "" {
		cfg.Speech.Source = "stdin"
	}
	if cfg.Context.MaxFiles == 0 {
		cfg.Context.MaxFiles = domain.DefaultMaxContextFiles
	}
	cfg.Cache.Path = filesystem.ExpandPath(cfg.Cache.Path)
	cfg.History.Path = filesystem.ExpandPath(cfg.History.Path)
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
