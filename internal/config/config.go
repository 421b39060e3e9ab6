package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bassista/go_scrapbook/internal/logger"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	SpeechElevenLabs = "elevenlabs"
	SpeechMemory     = "memory"
)

// Config is the full application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Speech SpeechConfig `mapstructure:"speech"`
	Misc   MiscConfig   `mapstructure:"misc"`
}

type ServerConfig struct {
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutDownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
}

// StoreConfig selects and configures the durable backend of the document store.
type StoreConfig struct {
	Backend      string        `mapstructure:"backend" validate:"oneof=memory file sqlite redis"`
	Namespace    string        `mapstructure:"namespace"`
	Dir          string        `mapstructure:"dir"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	RedisURL     string        `mapstructure:"redis_url"`
	RedisChannel string        `mapstructure:"redis_channel"`
	Debounce     time.Duration `mapstructure:"debounce"`
}

// SyncConfig configures the best-effort remote synchronization.
type SyncConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PrimaryURL   string        `mapstructure:"primary_url" validate:"omitempty,url"`
	SecondaryURL string        `mapstructure:"secondary_url" validate:"omitempty,url"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SpeechConfig configures the text-to-speech collaborator.
// APIKey is only ever read from the environment or a local .env file.
type SpeechConfig struct {
	Provider        string        `mapstructure:"provider" validate:"oneof=elevenlabs memory"`
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey          string        `mapstructure:"api_key"`
	VoiceID         string        `mapstructure:"voice_id"`
	ModelID         string        `mapstructure:"model_id"`
	Stability       float64       `mapstructure:"stability" validate:"min=0,max=1"`
	SimilarityBoost float64       `mapstructure:"similarity_boost" validate:"min=0,max=1"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type MiscConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	GinMode  string `mapstructure:"gin_mode"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.namespace", "jake_summer_")
	v.SetDefault("store.dir", "./config/data")
	v.SetDefault("store.sqlite_path", "./config/data/scrapbook.db")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.redis_channel", "scrapbook_changes")
	v.SetDefault("store.debounce", 800*time.Millisecond)

	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.primary_url", "")
	v.SetDefault("sync.secondary_url", "")
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.timeout", 10*time.Second)

	v.SetDefault("speech.provider", SpeechElevenLabs)
	v.SetDefault("speech.base_url", "https://api.elevenlabs.io")
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("speech.model_id", "eleven_monolingual_v1")
	v.SetDefault("speech.stability", 0.5)
	v.SetDefault("speech.similarity_boost", 0.5)
	v.SetDefault("speech.timeout", 30*time.Second)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.log_file", "")
	v.SetDefault("misc.gin_mode", "release")
}

// LoadConfig reads config.yaml from confPath (if present), a .env file from the
// working directory (if present) and SCRAPBOOK_* environment variables.
// Environment variables like SCRAPBOOK_SERVER_PORT override server.port.
func LoadConfig(confPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Warnf("cannot read .env file: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if confPath != "" {
		v.AddConfigPath(confPath)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("SCRAPBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("No config file found, using defaults and env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 || c.Server.ShutDownTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the file backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return errors.New("store.redis_url is required for the redis backend")
		}
	}
	if c.Store.Debounce <= 0 {
		return errors.New("store.debounce must be positive")
	}

	if c.Sync.Enabled {
		if c.Sync.PrimaryURL == "" {
			return errors.New("sync.primary_url is required when sync is enabled")
		}
		if c.Sync.Interval <= 0 {
			return errors.New("sync.interval must be positive")
		}
		if c.Sync.Timeout <= 0 {
			return errors.New("sync.timeout must be positive")
		}
	}

	if c.Speech.Provider == SpeechElevenLabs && c.Speech.VoiceID == "" {
		return errors.New("speech.voice_id is required for the elevenlabs provider")
	}
	if c.Speech.Timeout <= 0 {
		return errors.New("speech.timeout must be positive")
	}

	return nil
}
