// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Host describes the language model host the chat client talks to.
type Host struct {
	// Name is a user-friendly label for the host, for example "Local Ollama".
	Name string `mapstructure:"name"`
	// URL is the HTTP endpoint of the host, such as "http://localhost:11434".
	URL string `mapstructure:"url"`
	// Type selects the API dialect: "ollama" or "lmstudio".
	Type string `mapstructure:"type"`
}

// GatewayConfig tunes requests made to the model host.
type GatewayConfig struct {
	// RequestTimeout bounds a single completion call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChatConfig controls the interactive chat session.
type ChatConfig struct {
	// ExitCommand is the case-insensitive input that saves and quits instead of asking the model.
	ExitCommand string `mapstructure:"exit_command"`
	// Theme is "dark" or "light".
	Theme string `mapstructure:"theme"`
	// Markdown renders Bot answers with glamour.
	Markdown bool `mapstructure:"markdown"`
	// Debug shows request timing under the input line.
	Debug bool `mapstructure:"debug"`
}

// RedisConfig locates the history document when history.backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// SQLiteConfig locates the history database when history.backend is "sqlite".
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig selects where the conversation context is persisted and how much of it is kept.
type HistoryConfig struct {
	// Backend is one of "file", "redis" or "sqlite".
	Backend string `mapstructure:"backend"`
	// Path is the JSON file used by the file backend.
	Path string `mapstructure:"path"`
	// MaxTurns keeps only the most recent turns in the context; 0 keeps everything.
	MaxTurns int          `mapstructure:"max_turns"`
	Redis    RedisConfig  `mapstructure:"redis"`
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Config is the complete application configuration.
type Config struct {
	Host    Host          `mapstructure:"host"`
	Model   string        `mapstructure:"model"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Chat    ChatConfig    `mapstructure:"chat"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host.name", "Local Ollama")
	v.SetDefault("host.url", "http://localhost:11434")
	v.SetDefault("host.type", "ollama")
	v.SetDefault("model", "llama3")
	v.SetDefault("gateway.request_timeout", 5*time.Minute)
	v.SetDefault("chat.exit_command", "exit")
	v.SetDefault("chat.theme", "dark")
	v.SetDefault("chat.markdown", true)
	v.SetDefault("chat.debug", false)
	v.SetDefault("history.backend", "file")
	v.SetDefault("history.path", "chat_history.json")
	v.SetDefault("history.max_turns", 0)
	v.SetDefault("history.redis.addr", "localhost:6379")
	v.SetDefault("history.redis.key", "gollamachat:history")
	v.SetDefault("history.sqlite.path", "chat_history.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.path", "gollamachat.log")
}

// Init points the global viper instance at configFile (or the default search
// locations when it is empty), enables GOLLAMACHAT_* environment overrides and
// reads the file. A missing config file is not an error.
func Init(configFile string) error {
	SetDefaults(viper.GetViper())

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/gollamachat")
	}

	viper.SetEnvPrefix("GOLLAMACHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("could not read config file: %w", err)
	}
	return nil
}

// Load unmarshals the global viper state into a Config and validates it.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v into a Config and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Host.URL == "" {
		return errors.New("host.url must be set")
	}
	switch c.Host.Type {
	case "ollama", "lmstudio":
	default:
		return fmt.Errorf("invalid host.type: %q", c.Host.Type)
	}
	switch c.History.Backend {
	case "file":
		if c.History.Path == "" {
			return errors.New("history.path must be set for the file backend")
		}
	case "redis":
		if c.History.Redis.Addr == "" || c.History.Redis.Key == "" {
			return errors.New("history.redis.addr and history.redis.key must be set for the redis backend")
		}
	case "sqlite":
		if c.History.SQLite.Path == "" {
			return errors.New("history.sqlite.path must be set for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid history.backend: %q", c.History.Backend)
	}
	if c.History.MaxTurns < 0 {
		return fmt.Errorf("history.max_turns must not be negative, got %d", c.History.MaxTurns)
	}
	switch c.Chat.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("invalid chat.theme: %q", c.Chat.Theme)
	}
	if strings.TrimSpace(c.Chat.ExitCommand) == "" {
		return errors.New("chat.exit_command must not be empty")
	}
	return nil
}
