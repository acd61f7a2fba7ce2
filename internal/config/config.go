package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Bunny      BunnyConfig      `yaml:"bunny" mapstructure:"bunny"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary" mapstructure:"cloudinary"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Prompt     PromptConfig     `yaml:"prompt" mapstructure:"prompt"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the library/registry/run repository backend.
type StoreConfig struct {
	// Driver is one of "file", "sqlite", "postgres".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// File driver paths.
	LibraryFile  string `yaml:"library_file" mapstructure:"library_file"`
	RegistryFile string `yaml:"registry_file" mapstructure:"registry_file"`
	RunsFile     string `yaml:"runs_file" mapstructure:"runs_file"`
}

// PathsConfig holds the content tree layout.
type PathsConfig struct {
	ContentDir string `yaml:"content_dir" mapstructure:"content_dir"`
	DraftsDir  string `yaml:"drafts_dir" mapstructure:"drafts_dir"`
	TempDir    string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// SchemaFile is the static content-schema description embedded verbatim
	// into the generation prompt.
	SchemaFile string `yaml:"schema_file" mapstructure:"schema_file"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	MetadataModel  string `yaml:"metadata_model" mapstructure:"metadata_model"`
	ContentModel   string `yaml:"content_model" mapstructure:"content_model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MetadataTokens int64  `yaml:"metadata_tokens" mapstructure:"metadata_tokens"`
}

// BunnyConfig holds Bunny Stream and Edge Storage settings.
type BunnyConfig struct {
	StreamKey       string `yaml:"stream_key" mapstructure:"stream_key"`
	StreamLibraryID string `yaml:"stream_library_id" mapstructure:"stream_library_id"`
	StreamCDNHost   string `yaml:"stream_cdn_host" mapstructure:"stream_cdn_host"`
	StorageZone     string `yaml:"storage_zone" mapstructure:"storage_zone"`
	StoragePassword string `yaml:"storage_password" mapstructure:"storage_password"`
	StorageFTPHost  string `yaml:"storage_ftp_host" mapstructure:"storage_ftp_host"`
	PullZoneHost    string `yaml:"pull_zone_host" mapstructure:"pull_zone_host"`
	StoragePath     string `yaml:"storage_path" mapstructure:"storage_path"`
}

// CloudinaryConfig holds Cloudinary upload API settings.
type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name" mapstructure:"cloud_name"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	APISecret string `yaml:"api_secret" mapstructure:"api_secret"`
	Folder    string `yaml:"folder" mapstructure:"folder"`
}

// FetchConfig configures document downloads.
type FetchConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxSizeBytes int64   `yaml:"max_size_bytes" mapstructure:"max_size_bytes"`
}

// PromptConfig bounds the prompt context built around each URL occurrence.
type PromptConfig struct {
	ContextRadius int `yaml:"context_radius" mapstructure:"context_radius"`
	MaxDraftChars int `yaml:"max_draft_chars" mapstructure:"max_draft_chars"`
}

// ServerConfig configures the read-only inspection server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PUBLISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.library_file", "data/library.json")
	v.SetDefault("store.registry_file", "data/registry.json")
	v.SetDefault("store.runs_file", "data/runs.json")
	v.SetDefault("paths.content_dir", "content")
	v.SetDefault("paths.drafts_dir", "drafts")
	v.SetDefault("paths.temp_dir", ".publish-tmp")
	v.SetDefault("paths.schema_file", "schema/components.md")
	// Secrets default empty so AutomaticEnv can bind them.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("bunny.stream_key", "")
	v.SetDefault("bunny.stream_library_id", "")
	v.SetDefault("bunny.storage_zone", "")
	v.SetDefault("bunny.storage_password", "")
	v.SetDefault("bunny.pull_zone_host", "")
	v.SetDefault("cloudinary.cloud_name", "")
	v.SetDefault("cloudinary.api_key", "")
	v.SetDefault("cloudinary.api_secret", "")
	v.SetDefault("cloudinary.folder", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("anthropic.metadata_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.content_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.metadata_tokens", 4096)
	v.SetDefault("bunny.stream_cdn_host", "vz-publish.b-cdn.net")
	v.SetDefault("bunny.storage_ftp_host", "storage.bunnycdn.com:21")
	v.SetDefault("bunny.storage_path", "documents")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.max_size_bytes", 100<<20)
	v.SetDefault("prompt.context_radius", 300)
	v.SetDefault("prompt.max_draft_chars", 40000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
