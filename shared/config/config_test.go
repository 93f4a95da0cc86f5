package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
database:
  driver: mongo
  name: shop
assets:
  dir: /srv/assets
import:
  batch_size: 250
  job_retention: 1h
`)
	t.Setenv("ASSET_DIR", "/data/assets")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", cfg.Listen)
	}
	if cfg.Database.Driver != DriverMongo {
		t.Errorf("Driver = %q, want mongo", cfg.Database.Driver)
	}
	if cfg.Database.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("MongoURI = %q, default should survive partial file", cfg.Database.MongoURI)
	}
	if cfg.Assets.Dir != "/data/assets" {
		t.Errorf("Assets.Dir = %q, env override should win", cfg.Assets.Dir)
	}
	if cfg.Assets.LargeWidth != 1600 {
		t.Errorf("LargeWidth = %d, want 1600", cfg.Assets.LargeWidth)
	}
	if cfg.Import.BatchSize != 250 {
		t.Errorf("BatchSize = %d, want 250", cfg.Import.BatchSize)
	}
	if cfg.Import.JobRetention != time.Hour {
		t.Errorf("JobRetention = %v, want 1h", cfg.Import.JobRetention)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "database.driver",
		},
		{
			name:    "prefix without trailing slash",
			mutate:  func(c *Config) { c.Assets.URLPrefix = "/assets" },
			wantErr: "url_prefix",
		},
		{
			name:    "widths out of order",
			mutate:  func(c *Config) { c.Assets.MediumWidth = 2000 },
			wantErr: "widths",
		},
		{
			name:    "no extract limit",
			mutate:  func(c *Config) { c.Import.MaxExtractMB = 0 },
			wantErr: "max_extract_mb",
		},
		{
			name:    "quality out of range",
			mutate:  func(c *Config) { c.Assets.Quality = 0 },
			wantErr: "quality",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Import.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "unknown job store",
			mutate:  func(c *Config) { c.Import.JobStore = "redis" },
			wantErr: "job_store",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Import.JobRetention = -time.Second },
			wantErr: "job_retention",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestByteLimits(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.MaxUploadBytes(); got != 20*1024*1024 {
		t.Errorf("MaxUploadBytes() = %d", got)
	}
	if got := cfg.MaxImportBytes(); got != 512*1024*1024 {
		t.Errorf("MaxImportBytes() = %d", got)
	}
	if got := cfg.MaxExtractBytes(); got != 2048*1024*1024 {
		t.Errorf("MaxExtractBytes() = %d", got)
	}
}
