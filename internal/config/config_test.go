package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("OpenAIModel = %q, want gpt-4o-mini", cfg.OpenAIModel)
	}
	if cfg.CollaboratorTimeout != 20*time.Second {
		t.Errorf("CollaboratorTimeout = %s, want 20s", cfg.CollaboratorTimeout)
	}
	if !cfg.ValidationEnabled {
		t.Error("ValidationEnabled should be true by default")
	}
	if !cfg.AllowVotesAfterFinalize {
		t.Error("AllowVotesAfterFinalize should be true by default")
	}
	if cfg.RedisChannel != "bet_events" || cfg.KafkaTopic != "bet_events" {
		t.Errorf("unexpected channel/topic defaults: %q %q", cfg.RedisChannel, cfg.KafkaTopic)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %s, want INFO", cfg.SlogLevel())
	}
	if len(cfg.Brokers()) != 0 {
		t.Errorf("expected no brokers, got %v", cfg.Brokers())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("VALIDATION_ENABLED", "false")
	t.Setenv("ALLOW_VOTES_AFTER_FINALIZE", "false")
	t.Setenv("COLLABORATOR_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %s, want DEBUG", cfg.SlogLevel())
	}
	if cfg.ValidationEnabled || cfg.AllowVotesAfterFinalize {
		t.Error("boolean overrides not applied")
	}
	if cfg.CollaboratorTimeout != 3*time.Second {
		t.Errorf("CollaboratorTimeout = %s, want 3s", cfg.CollaboratorTimeout)
	}
	brokers := cfg.Brokers()
	if len(brokers) != 2 || brokers[0] != "kafka-1:9092" || brokers[1] != "kafka-2:9092" {
		t.Errorf("Brokers() = %v", brokers)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoad_ValidationRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VALIDATION_ENABLED", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when validation is enabled without an API key")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
