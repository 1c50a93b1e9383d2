package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for CertForge
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Render  RenderConfig  `mapstructure:"render"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Storage StorageConfig `mapstructure:"storage"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RenderConfig holds certificate rendering settings
type RenderConfig struct {
	MaxFontSize float64 `mapstructure:"max_font_size"`
	MinFontSize float64 `mapstructure:"min_font_size"`
	Flatten     bool    `mapstructure:"flatten"`
	FontName    string  `mapstructure:"font_name"`
}

// BatchConfig holds batch orchestration settings
type BatchConfig struct {
	Parallel         bool `mapstructure:"parallel"`
	MaxWorkers       int  `mapstructure:"max_workers"`
	RendersPerMinute int  `mapstructure:"renders_per_minute"`
	Burst            int  `mapstructure:"burst"`
}

// StorageConfig holds filesystem and database settings
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	BadgerPath   string `mapstructure:"badger_path"`
	TemplatesDir string `mapstructure:"templates_dir"`
	OutputDir    string `mapstructure:"output_dir"`
}

// CleanupConfig holds retention janitor settings
type CleanupConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Schedule    string `mapstructure:"schedule"`
	MaxAgeHours int    `mapstructure:"max_age_hours"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "certforge.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("storage.templates_dir", filepath.Join(dataDir, "templates"))
	v.SetDefault("storage.output_dir", filepath.Join(dataDir, "output"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "certforge.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (CERTFORGE_SERVER_PORT, CERTFORGE_RENDER_MAX_FONT_SIZE, etc.)
	v.SetEnvPrefix("CERTFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.Storage.TemplatesDir, cfg.Storage.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.allow_origins", []string{"*"})

	// Render defaults
	v.SetDefault("render.max_font_size", 48.0)
	v.SetDefault("render.min_font_size", 24.0)
	v.SetDefault("render.flatten", true)
	v.SetDefault("render.font_name", "Helvetica")

	// Batch defaults
	v.SetDefault("batch.parallel", true)
	v.SetDefault("batch.max_workers", 0) // 0 = min(NumCPU, 8)
	v.SetDefault("batch.renders_per_minute", 0)
	v.SetDefault("batch.burst", 10)

	// Cleanup defaults
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.schedule", "0 * * * *")
	v.SetDefault("cleanup.max_age_hours", 24)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "certforge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "certforge")
}

func validate(cfg *Config) error {
	if cfg.Render.MinFontSize <= 0 {
		return fmt.Errorf("render.min_font_size must be positive")
	}
	if cfg.Render.MaxFontSize < cfg.Render.MinFontSize {
		return fmt.Errorf("render.max_font_size must be >= render.min_font_size")
	}
	if cfg.Batch.MaxWorkers < 0 {
		return fmt.Errorf("batch.max_workers must be non-negative")
	}
	if cfg.Cleanup.Enabled && cfg.Cleanup.Schedule == "" {
		return fmt.Errorf("cleanup.schedule is required when cleanup is enabled")
	}
	return nil
}
