package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// CapsuleMaxChars is the maximum character count for a capsule's raw text
	CapsuleMaxChars int `yaml:"capsule_max_chars" json:"capsule_max_chars"`

	// DBPath is the SQLite file. Empty means <baseDir>/katha.db.
	DBPath string `yaml:"db_path" json:"db_path,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `yaml:"db_max_open_conns" json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `yaml:"db_max_idle_conns" json:"db_max_idle_conns,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level,omitempty"`

	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format" json:"log_format,omitempty"`

	// Addr is the listen address for `katha serve`.
	Addr string `yaml:"addr" json:"addr,omitempty"`

	// PublicURL is the externally reachable base URL, used to build media URLs.
	PublicURL string `yaml:"public_url" json:"public_url,omitempty"`

	// CORSOrigin is sent as Access-Control-Allow-Origin on function endpoints.
	CORSOrigin string `yaml:"cors_origin" json:"cors_origin,omitempty"`

	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string `yaml:"jwt_secret" json:"jwt_secret,omitempty"`

	AnthropicAPIKey  string `yaml:"anthropic_api_key" json:"anthropic_api_key,omitempty"`
	AnthropicBaseURL string `yaml:"anthropic_base_url" json:"anthropic_base_url,omitempty"`

	// PolishModel and PromptModel default to a Sonnet model; MetadataModel to Haiku.
	PolishModel   string `yaml:"polish_model" json:"polish_model,omitempty"`
	MetadataModel string `yaml:"metadata_model" json:"metadata_model,omitempty"`
	PromptModel   string `yaml:"prompt_model" json:"prompt_model,omitempty"`

	OpenAIAPIKey  string `yaml:"openai_api_key" json:"openai_api_key,omitempty"`
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url,omitempty"`
	WhisperModel  string `yaml:"whisper_model" json:"whisper_model,omitempty"`

	// AITimeoutSeconds bounds each external collaborator call.
	AITimeoutSeconds int `yaml:"ai_timeout_seconds" json:"ai_timeout_seconds,omitempty"`

	// Storage selects the blob backend: "fs" or "s3".
	Storage string `yaml:"storage" json:"storage,omitempty"`

	// MediaDir is the root for the fs backend. Empty means <baseDir>/media.
	MediaDir string `yaml:"media_dir" json:"media_dir,omitempty"`

	S3Bucket          string `yaml:"s3_bucket" json:"s3_bucket,omitempty"`
	S3Region          string `yaml:"s3_region" json:"s3_region,omitempty"`
	S3Endpoint        string `yaml:"s3_endpoint" json:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `yaml:"s3_access_key_id" json:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key" json:"s3_secret_access_key,omitempty"`

	// AudioHosts lists the hosts speech-to-text may download audio from
	// over https. Stored media is always readable; empty allows nothing else.
	AudioHosts []string `yaml:"audio_hosts" json:"audio_hosts,omitempty"`

	// AutosaveIntervalMS is the draft autosave debounce.
	AutosaveIntervalMS int `yaml:"autosave_interval_ms" json:"autosave_interval_ms,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `yaml:"disabled_tools" json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "capsule", "family", "child", "profile", "prompt".
	DisabledTypes []string `yaml:"disabled_types" json:"disabled_types,omitempty"`
}

// Default model and endpoint values.
const (
	DefaultPolishModel   = "claude-sonnet-4-20250514"
	DefaultMetadataModel = "claude-haiku-4-5-20251001"
	DefaultWhisperModel  = "whisper-1"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CapsuleMaxChars:    50000,
		LogLevel:           "info",
		LogFormat:          "console",
		Addr:               ":8080",
		CORSOrigin:         "*",
		AnthropicBaseURL:   "https://api.anthropic.com",
		PolishModel:        DefaultPolishModel,
		MetadataModel:      DefaultMetadataModel,
		PromptModel:        DefaultPolishModel,
		OpenAIBaseURL:      "https://api.openai.com",
		WhisperModel:       DefaultWhisperModel,
		AITimeoutSeconds:   30,
		Storage:            "fs",
		AutosaveIntervalMS: 2000,
	}
}

// configNames are tried in order inside baseDir.
var configNames = []string{"config.yaml", "config.yml", "config.json"}

// Load loads configuration from the first of baseDir/config.yaml,
// config.yml or config.json, then applies KATHA_* environment overrides.
// Returns default config if no file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.katha.
func Load(baseDir string) (*Config, error) {
	cfg, err := LoadFile(findConfig(baseDir))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, os.Getenv)
	cfg.resolvePaths(baseDir)
	return cfg, nil
}

// LoadFile loads configuration from a specific file path on top of defaults.
// An empty or missing path yields the defaults.
func LoadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

func findConfig(baseDir string) string {
	for _, name := range configNames {
		p := filepath.Join(baseDir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
// JSON files parse as YAML.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(baseDir string) {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(baseDir, "katha.db")
	}
	if c.MediaDir == "" {
		c.MediaDir = filepath.Join(baseDir, "media")
	}
}

// AITimeout returns the per-call timeout for external collaborators.
func (c *Config) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// AutosaveInterval returns the draft autosave debounce.
func (c *Config) AutosaveInterval() time.Duration {
	if c.AutosaveIntervalMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.AutosaveIntervalMS) * time.Millisecond
}

// envString maps KATHA_* variables onto string fields. Provider-standard
// names are accepted as a second choice for API keys.
var envString = []struct {
	names []string
	field func(*Config) *string
}{
	{[]string{"KATHA_DB_PATH"}, func(c *Config) *string { return &c.DBPath }},
	{[]string{"KATHA_LOG_LEVEL"}, func(c *Config) *string { return &c.LogLevel }},
	{[]string{"KATHA_LOG_FORMAT"}, func(c *Config) *string { return &c.LogFormat }},
	{[]string{"KATHA_ADDR"}, func(c *Config) *string { return &c.Addr }},
	{[]string{"KATHA_PUBLIC_URL"}, func(c *Config) *string { return &c.PublicURL }},
	{[]string{"KATHA_JWT_SECRET"}, func(c *Config) *string { return &c.JWTSecret }},
	{[]string{"KATHA_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}, func(c *Config) *string { return &c.AnthropicAPIKey }},
	{[]string{"KATHA_ANTHROPIC_BASE_URL"}, func(c *Config) *string { return &c.AnthropicBaseURL }},
	{[]string{"KATHA_OPENAI_API_KEY", "OPENAI_API_KEY"}, func(c *Config) *string { return &c.OpenAIAPIKey }},
	{[]string{"KATHA_OPENAI_BASE_URL"}, func(c *Config) *string { return &c.OpenAIBaseURL }},
	{[]string{"KATHA_STORAGE"}, func(c *Config) *string { return &c.Storage }},
	{[]string{"KATHA_MEDIA_DIR"}, func(c *Config) *string { return &c.MediaDir }},
	{[]string{"KATHA_S3_BUCKET"}, func(c *Config) *string { return &c.S3Bucket }},
	{[]string{"KATHA_S3_REGION"}, func(c *Config) *string { return &c.S3Region }},
	{[]string{"KATHA_S3_ENDPOINT"}, func(c *Config) *string { return &c.S3Endpoint }},
	{[]string{"KATHA_S3_ACCESS_KEY_ID"}, func(c *Config) *string { return &c.S3AccessKeyID }},
	{[]string{"KATHA_S3_SECRET_ACCESS_KEY"}, func(c *Config) *string { return &c.S3SecretAccessKey }},
}

// ApplyEnv overrides fields from environment variables read through getenv.
// Unset or empty variables leave the field unchanged; unparsable integers are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	for _, e := range envString {
		for _, name := range e.names {
			if v := strings.TrimSpace(getenv(name)); v != "" {
				*e.field(cfg) = v
				break
			}
		}
	}
	if v, err := strconv.Atoi(strings.TrimSpace(getenv("KATHA_AI_TIMEOUT_SECONDS"))); err == nil && v > 0 {
		cfg.AITimeoutSeconds = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(getenv("KATHA_CAPSULE_MAX_CHARS"))); err == nil && v > 0 {
		cfg.CapsuleMaxChars = v
	}
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		CapsuleMaxChars:    pickInt(base.CapsuleMaxChars, overlay.CapsuleMaxChars),
		DBPath:             pickString(base.DBPath, overlay.DBPath),
		DBMaxOpenConns:     pickInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns),
		DBMaxIdleConns:     pickInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns),
		LogLevel:           pickString(base.LogLevel, overlay.LogLevel),
		LogFormat:          pickString(base.LogFormat, overlay.LogFormat),
		Addr:               pickString(base.Addr, overlay.Addr),
		PublicURL:          pickString(base.PublicURL, overlay.PublicURL),
		CORSOrigin:         pickString(base.CORSOrigin, overlay.CORSOrigin),
		JWTSecret:          pickString(base.JWTSecret, overlay.JWTSecret),
		AnthropicAPIKey:    pickString(base.AnthropicAPIKey, overlay.AnthropicAPIKey),
		AnthropicBaseURL:   pickString(base.AnthropicBaseURL, overlay.AnthropicBaseURL),
		PolishModel:        pickString(base.PolishModel, overlay.PolishModel),
		MetadataModel:      pickString(base.MetadataModel, overlay.MetadataModel),
		PromptModel:        pickString(base.PromptModel, overlay.PromptModel),
		OpenAIAPIKey:       pickString(base.OpenAIAPIKey, overlay.OpenAIAPIKey),
		OpenAIBaseURL:      pickString(base.OpenAIBaseURL, overlay.OpenAIBaseURL),
		WhisperModel:       pickString(base.WhisperModel, overlay.WhisperModel),
		AITimeoutSeconds:   pickInt(base.AITimeoutSeconds, overlay.AITimeoutSeconds),
		Storage:            pickString(base.Storage, overlay.Storage),
		MediaDir:           pickString(base.MediaDir, overlay.MediaDir),
		S3Bucket:           pickString(base.S3Bucket, overlay.S3Bucket),
		S3Region:           pickString(base.S3Region, overlay.S3Region),
		S3Endpoint:         pickString(base.S3Endpoint, overlay.S3Endpoint),
		S3AccessKeyID:      pickString(base.S3AccessKeyID, overlay.S3AccessKeyID),
		S3SecretAccessKey:  pickString(base.S3SecretAccessKey, overlay.S3SecretAccessKey),
		AutosaveIntervalMS: pickInt(base.AutosaveIntervalMS, overlay.AutosaveIntervalMS),
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)
	result.AudioHosts = mergeStringSlice(base.AudioHosts, overlay.AudioHosts)

	return result
}

func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(base, overlay string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
