package domain

// Config mirrors ~/.vrelay/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Preferences         Preferences       `yaml:"preferences"`
	Models              []ModelDefinition `yaml:"models"`
	Execution           ExecutionSettings `yaml:"execution"`
	Cache               CacheSettings     `yaml:"cache"`
	History             HistorySettings   `yaml:"history"`
	Speech              SpeechSettings    `yaml:"speech"`
	Session             SessionSettings   `yaml:"session"`
	Oracle              OracleSettings    `yaml:"oracle"`
	Logging             LoggingSettings   `yaml:"logging"`
	Context             ContextSettings   `yaml:"context"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultModel string `yaml:"default_model"`
	// OpenLinks hands links found in replies to the desktop browser.
	OpenLinks bool `yaml:"open_links"`
}

// ExecutionSettings controls how fragments run.
type ExecutionSettings struct {
	Shell          string `yaml:"shell"`
	TimeoutSeconds int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"max_retries"`
}

// CacheSettings locates the fix cache file.
type CacheSettings struct {
	Path string `yaml:"path"`
}

// HistorySettings configures the execution history.
type HistorySettings struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	MaxRecords int    `yaml:"max_records"`
}

// SpeechSettings configures the command source.
type SpeechSettings struct {
	Source             string   `yaml:"source"`
	ExitPhrases        []string `yaml:"exit_phrases"`
	QueueSize          int      `yaml:"queue_size"`
	TranscriptionModel string   `yaml:"transcription_model"`
	TranscriptionEnv   string   `yaml:"transcription_auth_env_var"`
	MaxRecordSeconds   int      `yaml:"max_record_seconds"`
	Language           string   `yaml:"language"`
}

// SessionSettings configures the listen loop lifecycle.
type SessionSettings struct {
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// OracleSettings configures the repair oracle transport.
type OracleSettings struct {
	TimeoutSeconds int    `yaml:"timeout"`
	Proxy          string `yaml:"proxy"`
}

// LoggingSettings configures the zap logger.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ContextSettings configures workspace context collection.
type ContextSettings struct {
	IncludeFiles bool `yaml:"include_files"`
	MaxFiles     int  `yaml:"max_files"`
}
