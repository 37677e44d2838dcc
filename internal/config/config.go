// Package config loads service settings from the environment. An optional
// .env file in the working directory is read first; real environment
// variables take precedence over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the server reads.
type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	OpenAIKey     string `mapstructure:"openai_api_key"`
	OpenAIModel   string `mapstructure:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	RapidAPIKey   string `mapstructure:"rapidapi_key"`
	EventsBaseURL string `mapstructure:"events_base_url"`
	EventsHost    string `mapstructure:"events_host"`

	CollaboratorTimeout     time.Duration `mapstructure:"collaborator_timeout"`
	ValidationEnabled       bool          `mapstructure:"validation_enabled"`
	AllowVotesAfterFinalize bool          `mapstructure:"allow_votes_after_finalize"`

	RedisURL     string `mapstructure:"redis_url"`
	RedisChannel string `mapstructure:"redis_channel"`
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`
}

var defaults = map[string]any{
	"port":                       "8080",
	"log_level":                  "info",
	"openai_api_key":             "",
	"openai_model":               "gpt-4o-mini",
	"openai_base_url":            "",
	"rapidapi_key":               "",
	"events_base_url":            "https://api-nba-v1.p.rapidapi.com",
	"events_host":                "api-nba-v1.p.rapidapi.com",
	"collaborator_timeout":       "20s",
	"validation_enabled":         true,
	"allow_votes_after_finalize": true,
	"redis_url":                  "",
	"redis_channel":              "bet_events",
	"kafka_brokers":              "",
	"kafka_topic":                "bet_events",
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.ValidationEnabled && c.OpenAIKey == "" {
		errs = append(errs, errors.New("config: OPENAI_API_KEY is required when VALIDATION_ENABLED is true"))
	}
	if c.CollaboratorTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: COLLABORATOR_TIMEOUT must not be negative, got %s", c.CollaboratorTimeout))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel is LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// Brokers splits KafkaBrokers on commas, dropping blanks.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
	}
	return lvl, nil
}
