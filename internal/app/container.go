package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/doeshing/vrelay/internal/application/config"
	"github.com/doeshing/vrelay/internal/application/doctor"
	"github.com/doeshing/vrelay/internal/application/relay"
	"github.com/doeshing/vrelay/internal/application/repair"
	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/infrastructure/ai"
	"github.com/doeshing/vrelay/internal/infrastructure/audio"
	"github.com/doeshing/vrelay/internal/infrastructure/cache"
	configloader "github.com/doeshing/vrelay/internal/infrastructure/config"
	contextcollector "github.com/doeshing/vrelay/internal/infrastructure/context"
	"github.com/doeshing/vrelay/internal/infrastructure/executor"
	"github.com/doeshing/vrelay/internal/infrastructure/history"
	"github.com/doeshing/vrelay/internal/infrastructure/security"
	"github.com/doeshing/vrelay/internal/infrastructure/speech"
	"github.com/doeshing/vrelay/internal/pkg/logger"
	"github.com/doeshing/vrelay/internal/ports"
)

// Source kinds accepted by speech.source and --source.
const (
	SourceStdin = "stdin"
	SourceMic   = "mic"
)

// Options configures BuildContainer.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Container wires up application services with infrastructure adapters.
// Components that need credentials or exclusive files are built on demand so
// maintenance commands work without them.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *configloader.FileLoader
	Logger         *logger.ZapLogger
	Collector      ports.ContextCollector
	Filter         *security.DangerFilter
	Runner         *executor.Runner
	HistoryStore   ports.HistoryRepository
	History        *history.Log
	DoctorService  *doctor.Service
}

// BuildContainer loads configuration and constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := configloader.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg, opts.Verbose)
	if err != nil {
		return nil, err
	}

	runner := executor.NewRunner(executor.Options{
		Timeout: cfg.GetExecutionTimeout(),
		Shell:   cfg.GetExecutionShell(),
		Logger:  log,
	})
	collector := contextcollector.NewBasicCollector()
	historyStore := history.NewRepository(cfg.History.Backend, cfg.History.Path, log)
	historyLog := history.NewLog(history.LogOptions{
		MaxRecords: cfg.GetMaxHistoryRecords(),
		Store:      historyStore,
		Logger:     log,
	})

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Validate:       config.Validate,
		OpenCache: func(path string) (ports.FixCacheRepository, error) {
			return cache.NewFixCache(path)
		},
		Runner:           runner,
		ContextCollector: collector,
	}

	return &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Collector:      collector,
		Filter:         security.NewDangerFilter(),
		Runner:         runner,
		HistoryStore:   historyStore,
		History:        historyLog,
		DoctorService:  doctorService,
	}, nil
}

func newLogger(cfg domain.Config, verbose bool) (*logger.ZapLogger, error) {
	return logger.New(logger.Options{
		Verbose: verbose,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})
}

// OpenCache loads the fix cache. A corrupt cache file is fatal for commands
// that execute code.
func (c *Container) OpenCache() (*cache.FixCache, error) {
	return cache.NewFixCache(c.CachePath())
}

// CachePath returns the fix cache location.
func (c *Container) CachePath() string {
	if c.Config.Cache.Path == "" {
		return cache.DefaultPath()
	}
	return c.Config.Cache.Path
}

// NewOracle builds the conversation for modelName, or the default model when
// empty.
func (c *Container) NewOracle(ctx context.Context, modelName string) (*ai.Conversation, error) {
	model, err := c.selectModel(modelName)
	if err != nil {
		return nil, err
	}
	factory, err := ai.NewFactory(c.Config.Oracle.Proxy)
	if err != nil {
		return nil, err
	}
	provider, err := factory.ForModel(model)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.Collector.Collect(ctx, c.Config)
	if err != nil {
		c.Logger.Warn("context collection failed", map[string]interface{}{"error": err.Error()})
	}
	return ai.NewConversation(provider, ai.ConversationOptions{
		Snapshot: snapshot,
		Timeout:  c.Config.GetOracleTimeout(),
		Logger:   c.Logger,
	})
}

func (c *Container) selectModel(name string) (domain.ModelDefinition, error) {
	if name == "" {
		return c.Config.GetDefaultModel()
	}
	model, ok := c.Config.FindModelByName(name)
	if !ok {
		return domain.ModelDefinition{}, fmt.Errorf("model %s not found in configuration", name)
	}
	return model, nil
}

// NewCoordinator builds the repair loop around oracle. A nil oracle disables
// repairs.
func (c *Container) NewCoordinator(oracle ports.Oracle) (*repair.Coordinator, error) {
	fixCache, err := c.OpenCache()
	if err != nil {
		return nil, err
	}
	return repair.New(repair.Options{
		Cache:       fixCache,
		Filter:      c.Filter,
		Runner:      c.Runner,
		Oracle:      oracle,
		History:     c.History,
		Logger:      c.Logger,
		MaxAttempts: c.Config.GetMaxRetries(),
	})
}

// NewRelay wires the relay service for one process lifetime.
func (c *Container) NewRelay(ctx context.Context, modelName string, links ports.LinkOpener) (*relay.Service, error) {
	oracle, err := c.NewOracle(ctx, modelName)
	if err != nil {
		return nil, err
	}
	coordinator, err := c.NewCoordinator(oracle)
	if err != nil {
		return nil, err
	}
	return &relay.Service{
		Config:        c.Config,
		Collector:     c.Collector,
		Oracle:        oracle,
		Runner:        coordinator,
		History:       c.History,
		Links:         links,
		Logger:        c.Logger,
		RelevantLimit: domain.DefaultRelevantHistory,
	}, nil
}

// NewSource opens the command source named kind, falling back to the
// configured one. in and prompt are used by the stdin source.
func (c *Container) NewSource(kind string, in io.Reader, prompt io.Writer) (ports.CommandSource, error) {
	if kind == "" {
		kind = c.Config.Speech.Source
	}
	switch strings.ToLower(kind) {
	case "", SourceStdin:
		return speech.NewLineSource(in, prompt, "> "), nil
	case SourceMic:
		return c.newMicSource(prompt)
	default:
		return nil, fmt.Errorf("unknown command source %q (want stdin|mic)", kind)
	}
}

func (c *Container) newMicSource(prompt io.Writer) (ports.CommandSource, error) {
	model, err := c.Config.GetDefaultModel()
	if err != nil {
		return nil, err
	}
	keyEnv := c.Config.Speech.TranscriptionEnv
	if keyEnv == "" {
		keyEnv = model.AuthEnvVar
	}
	transcriber, err := speech.NewWhisperTranscriber(speech.WhisperOptions{
		APIKey:   os.Getenv(keyEnv),
		BaseURL:  ai.OpenAIBaseURL(transcriptionEndpoint(model)),
		Model:    c.Config.Speech.TranscriptionModel,
		Language: c.Config.Speech.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set %s)", err, keyEnv)
	}
	recorder, err := audio.NewPortAudioRecorder()
	if err != nil {
		return nil, err
	}
	return speech.NewMicSource(speech.MicOptions{
		Recorder:    recorder,
		Transcriber: transcriber,
		MaxDuration: c.Config.GetMaxRecordDuration(),
		Logger:      c.Logger,
		Prompt:      prompt,
	}), nil
}

// transcriptionEndpoint reuses the default model's OpenAI-compatible endpoint;
// other providers fall back to Groq.
func transcriptionEndpoint(model domain.ModelDefinition) string {
	if model.ResolvedProvider() == domain.ProviderOpenAI {
		return model.Endpoint
	}
	return ""
}

// Close flushes the logger and releases the history store.
func (c *Container) Close() error {
	_ = c.Logger.Sync()
	if closer, ok := c.HistoryStore.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
