package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  port: 9090
database:
  driver: sqlite
  path: /tmp/cf.db
kafka:
  brokers: ["k1:9092", "k2:9092"]
auth:
  jwt_secret: file-secret
business:
  existential_deposit: 5
  initiator_must_be_owner: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadReadsFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Database.Driver != "sqlite" || cfg.Database.Path != "/tmp/cf.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic.CrowdfundEvents != "crowdfund-events" {
		t.Fatalf("unexpected kafka config: %+v", cfg.Kafka)
	}
	if cfg.Business.ExistentialDeposit != 5 || !cfg.Business.InitiatorMustBeOwner {
		t.Fatalf("unexpected business config: %+v", cfg.Business)
	}
	if cfg.Business.MaxRetryCount != 5 || cfg.Log.Level != "info" {
		t.Fatal("defaults not applied")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("CROWDFUND_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("CROWDFUND_SERVER_PORT", "7070")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" || cfg.Server.Port != 7070 {
		t.Fatalf("env override not applied: secret=%q port=%d", cfg.Auth.JWTSecret, cfg.Server.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing secret", "database:\n  driver: sqlite\n"},
		{"unknown driver", "database:\n  driver: oracle\nauth:\n  jwt_secret: s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
