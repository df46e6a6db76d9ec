package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRepositoryConfig(t *testing.T) {
	cfg, err := Load("../../config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Pik-Cha", cfg.Processing.DefaultWatermark)
	assert.Equal(t, 50, cfg.Editor.HistoryLimit)
	assert.Equal(t, "redis", cfg.Lock.Type)
	assert.Equal(t, "committed", cfg.Storage.CommittedDir)
	assert.Contains(t, cfg.Processing.SupportedFormats, "png")
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ShutdownTimeoutSec: 1,
			ReadTimeoutSec:     1,
			WriteTimeoutSec:    1,
			MaxUploadSizeMB:    1,
		},
		Database:   DatabaseConfig{DSN: "postgres://x", MaxOpenConns: 1},
		Migrations: MigrationsConfig{Path: "./migrations"},
		Kafka:      KafkaConfig{Brokers: []string{"k:9092"}, Topic: "t", GroupID: "g"},
		Storage:    StorageConfig{Type: "local", LocalPath: "./data"},
		Processing: ProcessingConfig{OutputQuality: 90, SupportedFormats: []string{"png"}},
		Editor:     EditorConfig{HistoryLimit: 10, CommitTimeoutSec: 60},
		Lock:       LockConfig{Type: "local", TTLSec: 60},
		Logging:    LoggingConfig{Level: "info"},
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no addr", func(c *Config) { c.Server.Addr = "" }},
		{"no dsn", func(c *Config) { c.Database.DSN = "" }},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage = StorageConfig{Type: "s3", S3Endpoint: "m:9000"} }},
		{"quality out of range", func(c *Config) { c.Processing.OutputQuality = 101 }},
		{"negative history", func(c *Config) { c.Editor.HistoryLimit = -1 }},
		{"no commit timeout", func(c *Config) { c.Editor.CommitTimeoutSec = 0 }},
		{"redis without addr", func(c *Config) { c.Lock.Type = "redis" }},
		{"unknown lock", func(c *Config) { c.Lock.Type = "etcd" }},
		{"no ttl", func(c *Config) { c.Lock.TTLSec = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}
