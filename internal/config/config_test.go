package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.SQLitePath != "splitbot.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.DeliveryWorkers != 3 {
		t.Errorf("DeliveryWorkers = %d, want 3", cfg.DeliveryWorkers)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/splitbot")
	t.Setenv("OUTBOUND_RATE_PER_SECOND", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://u:p@db/splitbot" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.OutboundRatePerSecond != 25 {
		t.Errorf("OutboundRatePerSecond = %d, want 25", cfg.OutboundRatePerSecond)
	}
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("DEBUG", "false")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want missing DATABASE_URL failure")
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7001
kapso:
  url: https://kapso.example
  phone_number_id: phone-7
delivery:
  workers: 5
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("DEBUG", "true")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7001 {
		t.Errorf("Port = %d, want file value 7001", cfg.Port)
	}
	if cfg.KapsoURL != "https://kapso.example" || cfg.KapsoPhoneNumberID != "phone-7" {
		t.Errorf("Kapso = (%q, %q)", cfg.KapsoURL, cfg.KapsoPhoneNumberID)
	}
	if cfg.DeliveryWorkers != 5 {
		t.Errorf("DeliveryWorkers = %d, want 5", cfg.DeliveryWorkers)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(":\tnot yaml"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("DEBUG", "true")
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want parse failure")
	}
}
