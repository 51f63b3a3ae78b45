package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dailysync/internal/pipeline"
	"dailysync/internal/util"

	"github.com/spf13/viper"
)

type Config struct {
	DaemonPort           int           `mapstructure:"daemon_port"`
	SettingsPath         string        `mapstructure:"settings_path"`
	DBPath               string        `mapstructure:"db_path"`
	LogPath              string        `mapstructure:"log_path"`
	CopyWorkers          int           `mapstructure:"copy_workers"`
	TickInterval         time.Duration `mapstructure:"tick_interval"`
	CopyTimeout          time.Duration `mapstructure:"copy_timeout"`
	NotificationsEnabled bool          `mapstructure:"notifications_enabled"`
	StartVisible         bool          `mapstructure:"start_visible"`
	Ignore               []string      `mapstructure:"ignore"`
}

var Default = Config{
	DaemonPort:           9311,
	SettingsPath:         "settings.json",
	DBPath:               "history.db",
	LogPath:              "dailysync.log",
	CopyWorkers:          0,
	TickInterval:         time.Second,
	CopyTimeout:          0,
	NotificationsEnabled: true,
	StartVisible:         false,
	Ignore:               []string{util.TempPattern},
}

// Dir returns the per-user directory holding config, settings and history.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	return filepath.Join(home, ".dailysync"), nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	return load(viper.New(), configDir)
}

func load(v *viper.Viper, configDir string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("settings_path", filepath.Join(configDir, Default.SettingsPath))
	v.SetDefault("db_path", filepath.Join(configDir, Default.DBPath))
	v.SetDefault("log_path", filepath.Join(configDir, Default.LogPath))
	v.SetDefault("copy_workers", Default.CopyWorkers)
	v.SetDefault("tick_interval", Default.TickInterval)
	v.SetDefault("copy_timeout", Default.CopyTimeout)
	v.SetDefault("notifications_enabled", Default.NotificationsEnabled)
	v.SetDefault("start_visible", Default.StartVisible)
	v.SetDefault("ignore", Default.Ignore)

	v.SetEnvPrefix("DAILYSYNC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick_interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.CopyWorkers < 0 {
		return nil, fmt.Errorf("copy_workers must not be negative, got %d", cfg.CopyWorkers)
	}
	if _, err := pipeline.NewFilter(cfg.Ignore); err != nil {
		return nil, err
	}

	return &cfg, nil
}
