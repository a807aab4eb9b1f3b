// Package config loads blockcore settings from an optional YAML file, with
// environment variables taking precedence over file values.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"blockcore/internal/infra/blob"
	blobfs "blockcore/internal/infra/blob/fs"
	blobmemory "blockcore/internal/infra/blob/memory"
	"blockcore/internal/infra/blob/s3"
	"blockcore/internal/infra/persistence/memory"
	"blockcore/internal/infra/persistence/postgres"
	"blockcore/internal/infra/persistence/sqlite"
	"blockcore/pkg/domain"

	"gopkg.in/yaml.v3"
)

// Config is the full settings tree.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Blob      BlobConfig      `yaml:"blob"`
	CloudSync CloudSyncConfig `yaml:"cloud_sync"`
}

// StorageConfig selects the project document backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the blob backend used for cloud variable pushes.
type BlobConfig struct {
	Driver      string `yaml:"driver"` // fs|s3|memory
	FSRoot      string `yaml:"fs_root"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// CloudSyncConfig controls the cloud variable push.
type CloudSyncConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: "sqlite"},
		Blob:    BlobConfig{Driver: "fs"},
	}
}

// Load reads path (skipped when empty or missing) and applies environment
// overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Storage.Driver, "BLOCKCORE_STORAGE_DRIVER")
	setString(&c.Storage.SQLitePath, "BLOCKCORE_SQLITE_PATH")
	setString(&c.Storage.PostgresDSN, "BLOCKCORE_POSTGRES_DSN")
	setString(&c.Blob.Driver, "BLOCKCORE_BLOB_DRIVER")
	setString(&c.Blob.FSRoot, "BLOCKCORE_BLOB_FS_ROOT")
	setString(&c.Blob.S3Bucket, "BLOCKCORE_BLOB_S3_BUCKET")
	setString(&c.Blob.S3Region, "BLOCKCORE_BLOB_S3_REGION")
	setString(&c.Blob.S3Endpoint, "BLOCKCORE_BLOB_S3_ENDPOINT")
	if v := os.Getenv("BLOCKCORE_BLOB_S3_PATH_STYLE"); v != "" {
		c.Blob.S3PathStyle = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("BLOCKCORE_CLOUD_SYNC"); v != "" {
		c.CloudSync.Enabled = strings.EqualFold(v, "true")
	}
	setString(&c.CloudSync.ProjectID, "BLOCKCORE_PROJECT_ID")
}

func setString(target *string, env string) {
	if v := os.Getenv(env); v != "" {
		*target = v
	}
}

// OpenProjectStore opens the configured project document backend.
func (c Config) OpenProjectStore(ctx context.Context) (domain.ProjectStore, error) {
	switch c.Storage.Driver {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite", "":
		return sqlite.NewStore(c.Storage.SQLitePath)
	case "postgres":
		return postgres.NewStore(ctx, c.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", c.Storage.Driver)
	}
}

// OpenBlobStore opens the configured blob backend.
func (c Config) OpenBlobStore(ctx context.Context) (blob.Store, error) {
	switch c.Blob.Driver {
	case "fs", "":
		return blobfs.New(c.Blob.FSRoot)
	case "s3":
		return s3.New(ctx, s3.Config{
			Bucket:    c.Blob.S3Bucket,
			Region:    c.Blob.S3Region,
			Endpoint:  c.Blob.S3Endpoint,
			PathStyle: c.Blob.S3PathStyle,
		})
	case "memory":
		return blobmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", c.Blob.Driver)
	}
}
