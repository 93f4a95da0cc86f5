// Package config loads the storefront service configuration from a YAML
// file, an optional .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	JobStoreMemory = "memory"
	JobStoreSQLite = "sqlite"
)

// Config holds the full service configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	LogLevel string         `yaml:"log_level"`
	Database DatabaseConfig `yaml:"database"`
	Assets   AssetsConfig   `yaml:"assets"`
	Import   ImportConfig   `yaml:"import"`
}

// DatabaseConfig selects and configures the document store.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // sqlite | mongo
	Name       string `yaml:"name"`
	SQLitePath string `yaml:"sqlite_path"`
	MongoURI   string `yaml:"mongo_uri"`
}

// AssetsConfig configures the asset directory and rendition pipeline.
type AssetsConfig struct {
	Dir         string `yaml:"dir"`
	URLPrefix   string `yaml:"url_prefix"`
	ThumbWidth  int    `yaml:"thumb_width"`
	MediumWidth int    `yaml:"medium_width"`
	LargeWidth  int    `yaml:"large_width"`
	Quality     int    `yaml:"quality"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// ImportConfig configures the snapshot import job engine.
type ImportConfig struct {
	BatchSize int    `yaml:"batch_size"`
	TmpDir    string `yaml:"tmp_dir"`
	MaxFileMB int    `yaml:"max_file_mb"`
	// MaxExtractMB caps the uncompressed size of a bundle archive.
	MaxExtractMB int    `yaml:"max_extract_mb"`
	JobStore     string `yaml:"job_store"` // memory | sqlite
	// JobRetention evicts finished jobs from the memory store after this
	// long. Zero keeps them for the process lifetime.
	JobRetention time.Duration `yaml:"job_retention"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			Name:       "storefront",
			SQLitePath: "./storefront.db",
			MongoURI:   "mongodb://localhost:27017",
		},
		Assets: AssetsConfig{
			Dir:         "./uploads",
			URLPrefix:   "/assets/",
			ThumbWidth:  320,
			MediumWidth: 800,
			LargeWidth:  1600,
			Quality:     80,
			MaxUploadMB: 20,
		},
		Import: ImportConfig{
			BatchSize:    1000,
			TmpDir:       os.TempDir(),
			MaxFileMB:    512,
			MaxExtractMB: 2048,
			JobStore:     JobStoreMemory,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. A .env file in the working
// directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	if path == "" {
		path = os.Getenv("STOREFRONT_CONFIG")
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"LISTEN_ADDR", &c.Listen},
		{"LOG_LEVEL", &c.LogLevel},
		{"DB_DRIVER", &c.Database.Driver},
		{"DB_NAME", &c.Database.Name},
		{"DB_URI", &c.Database.MongoURI},
		{"SQLITE_DB_PATH", &c.Database.SQLitePath},
		{"ASSET_DIR", &c.Assets.Dir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Database.MongoURI == "" {
			return fmt.Errorf("database.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (use sqlite or mongo)", c.Database.Driver)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}

	if c.Assets.Dir == "" {
		return fmt.Errorf("assets.dir is required")
	}
	if !strings.HasPrefix(c.Assets.URLPrefix, "/") || !strings.HasSuffix(c.Assets.URLPrefix, "/") {
		return fmt.Errorf("assets.url_prefix must start and end with /")
	}
	if c.Assets.ThumbWidth <= 0 || c.Assets.ThumbWidth > c.Assets.MediumWidth || c.Assets.MediumWidth > c.Assets.LargeWidth {
		return fmt.Errorf("assets widths must satisfy 0 < thumb <= medium <= large")
	}
	if c.Assets.Quality < 1 || c.Assets.Quality > 100 {
		return fmt.Errorf("assets.quality must be in [1, 100]")
	}
	if c.Assets.MaxUploadMB <= 0 {
		return fmt.Errorf("assets.max_upload_mb must be > 0")
	}

	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be > 0")
	}
	if c.Import.MaxFileMB <= 0 {
		return fmt.Errorf("import.max_file_mb must be > 0")
	}
	if c.Import.MaxExtractMB <= 0 {
		return fmt.Errorf("import.max_extract_mb must be > 0")
	}
	switch c.Import.JobStore {
	case JobStoreMemory:
	case JobStoreSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("import.job_store sqlite requires database.sqlite_path")
		}
	default:
		return fmt.Errorf("unsupported import.job_store %q (use memory or sqlite)", c.Import.JobStore)
	}
	if c.Import.JobRetention < 0 {
		return fmt.Errorf("import.job_retention must be >= 0")
	}
	return nil
}

// MaxUploadBytes returns the per-image upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.Assets.MaxUploadMB) * 1024 * 1024 }

// MaxImportBytes returns the snapshot upload limit in bytes.
func (c *Config) MaxImportBytes() int64 { return int64(c.Import.MaxFileMB) * 1024 * 1024 }

// MaxExtractBytes returns the uncompressed bundle limit in bytes.
func (c *Config) MaxExtractBytes() int64 { return int64(c.Import.MaxExtractMB) * 1024 * 1024 }
