// Package config loads process settings from the environment and game
// defaults from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds settings read from MINIGAMES_* variables.
type Env struct {
	Addr        string        `env:"MINIGAMES_ADDR" envDefault:"127.0.0.1:17888"`
	DBPath      string        `env:"MINIGAMES_DB_PATH"`
	ConfigPath  string        `env:"MINIGAMES_CONFIG"`
	LogLevel    string        `env:"MINIGAMES_LOG_LEVEL" envDefault:"info"`
	LogFormat   string        `env:"MINIGAMES_LOG_FORMAT" envDefault:"text"`
	NATSURL     string        `env:"MINIGAMES_NATS_URL"`
	AdminToken  string        `env:"MINIGAMES_ADMIN_TOKEN"`
	SessionTTL  time.Duration `env:"MINIGAMES_SESSION_TTL" envDefault:"30m"`
	CORSOrigins []string      `env:"MINIGAMES_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Config is the full runtime configuration.
type Config struct {
	Env
	Games Games
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the environment and, when MINIGAMES_CONFIG is set, the game
// defaults file.
func Load() (*Config, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return nil, err
	}
	return build(e)
}

// LoadFrom is Load over an explicit environment instead of os.Environ.
func LoadFrom(environ map[string]string) (*Config, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return build(e)
}

func build(e Env) (*Config, error) {
	cfg := &Config{Env: e, Games: DefaultGames()}
	if e.ConfigPath != "" {
		data, err := os.ReadFile(e.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("read game config: %w", err)
		}
		g, err := ParseGames(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.ConfigPath, err)
		}
		cfg.Games = g
	}
	if e.SessionTTL < 0 {
		return nil, fmt.Errorf("MINIGAMES_SESSION_TTL must not be negative")
	}
	return cfg, nil
}
