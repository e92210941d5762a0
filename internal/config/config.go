package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Socket SocketConfig
	Pane   PaneConfig
	Log    LogConfig
	UI     UIConfig
	Keys   map[string]map[string][]string
}

// SocketConfig holds the canvas socket settings. {id} in PathTemplate is
// replaced by the canvas id.
type SocketConfig struct {
	PathTemplate string `mapstructure:"path_template"`
}

// PaneConfig holds pane lifecycle settings.
type PaneConfig struct {
	Registry  string
	StateFile string `mapstructure:"state_file"`
	DBPath    string `mapstructure:"db_path"`
	RedisURL  string `mapstructure:"redis_url"`
	RedisKey  string `mapstructure:"redis_key"`
	SplitSize string `mapstructure:"split_size"`
	Settle    time.Duration
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
	Output string
	File   string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ShowHelp bool `mapstructure:"show_help"`
}

// Path returns the config file location: $FLOWCANVAS_CONFIG, or
// ~/.config/flowcanvas/config.toml.
func Path() string {
	if p := os.Getenv("FLOWCANVAS_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "flowcanvas", "config.toml")
}

// Load reads configuration from file and env. Env var overrides use prefix
// FLOWCANVAS_. A .env file in the working directory is loaded first.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	tmp := os.TempDir()
	v.SetDefault("socket.path_template", filepath.Join(tmp, "flowcanvas-{id}.sock"))
	v.SetDefault("pane.registry", "file")
	v.SetDefault("pane.state_file", filepath.Join(tmp, "flowcanvas-pane.json"))
	v.SetDefault("pane.db_path", filepath.Join(os.Getenv("HOME"), ".local", "share", "flowcanvas", "panes.db"))
	v.SetDefault("pane.redis_url", "redis://localhost:6379/0")
	v.SetDefault("pane.redis_key", "flowcanvas:pane")
	v.SetDefault("pane.split_size", "40%")
	v.SetDefault("pane.settle", 150*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file", filepath.Join(tmp, "flowcanvas.log"))
	v.SetDefault("ui.show_help", true)

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("FLOWCANVAS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(Path()); statErr == nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Pane.Registry = strings.ToLower(strings.TrimSpace(c.Pane.Registry))
	switch c.Pane.Registry {
	case "file", "sqlite", "redis":
	default:
		return Config{}, fmt.Errorf("pane.registry: unknown registry %q", c.Pane.Registry)
	}
	return c, nil
}
