// Package config loads visarchive settings from an optional YAML file and
// VISARCHIVE_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Backend names accepted in Archive.Backend.
const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
)

// Embedder providers accepted in Embedder.Provider.
const (
	ProviderHash = "hash"
	ProviderCLIP = "clip"
)

// Config is the full visarchive configuration.
type Config struct {
	Archive  Archive  `yaml:"archive"`
	Embedder Embedder `yaml:"embedder"`
	Query    Query    `yaml:"query"`
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
}

// Archive locates the image source and the persisted archive.
type Archive struct {
	SourceDir  string `yaml:"source_dir"`
	Backend    string `yaml:"backend"`
	IndexDir   string `yaml:"index_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	S3         S3     `yaml:"s3"`
}

// S3 configures the S3 backend.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Embedder selects and configures the embedding model.
type Embedder struct {
	Provider  string   `yaml:"provider"`
	URL       string   `yaml:"url"`
	Model     string   `yaml:"model"`
	Token     string   `yaml:"token"`
	Dimension int      `yaml:"dimension"`
	RateLimit float64  `yaml:"rate_limit"`
	Labels    []string `yaml:"labels"`
}

// Query holds the candidate window sizes.
type Query struct {
	TopK        int `yaml:"top_k"`
	CompactTopK int `yaml:"compact_top_k"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `yaml:"addr"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Archive: Archive{
			SourceDir:  "images",
			Backend:    BackendLocal,
			IndexDir:   "index_db",
			SQLitePath: "archive.db",
			S3:         S3{Region: "us-east-1"},
		},
		Embedder: Embedder{
			Provider:  ProviderHash,
			Model:     "openai/clip-vit-base-patch32",
			Dimension: 512,
			RateLimit: 5,
			Labels:    []string{"Oil Painting", "Sketch", "Photography", "Sculpture", "Digital Art", "Abstract"},
		},
		Query:  Query{TopK: 20, CompactTopK: 5},
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Archive.SourceDir = envOrDefault("VISARCHIVE_SOURCE_DIR", c.Archive.SourceDir)
	c.Archive.Backend = envOrDefault("VISARCHIVE_BACKEND", c.Archive.Backend)
	c.Archive.IndexDir = envOrDefault("VISARCHIVE_INDEX_DIR", c.Archive.IndexDir)
	c.Archive.SQLitePath = envOrDefault("VISARCHIVE_SQLITE_PATH", c.Archive.SQLitePath)
	c.Archive.S3.Bucket = envOrDefault("VISARCHIVE_S3_BUCKET", c.Archive.S3.Bucket)
	c.Archive.S3.Prefix = envOrDefault("VISARCHIVE_S3_PREFIX", c.Archive.S3.Prefix)
	c.Archive.S3.Region = envOrDefault("VISARCHIVE_S3_REGION", c.Archive.S3.Region)
	c.Archive.S3.Endpoint = envOrDefault("VISARCHIVE_S3_ENDPOINT", c.Archive.S3.Endpoint)
	c.Archive.S3.AccessKeyID = envOrDefault("AWS_ACCESS_KEY_ID", c.Archive.S3.AccessKeyID)
	c.Archive.S3.SecretAccessKey = envOrDefault("AWS_SECRET_ACCESS_KEY", c.Archive.S3.SecretAccessKey)
	c.Embedder.Provider = envOrDefault("VISARCHIVE_EMBEDDER", c.Embedder.Provider)
	c.Embedder.URL = envOrDefault("VISARCHIVE_EMBEDDER_URL", c.Embedder.URL)
	c.Embedder.Model = envOrDefault("VISARCHIVE_EMBEDDER_MODEL", c.Embedder.Model)
	c.Embedder.Token = envOrDefault("VISARCHIVE_EMBEDDER_TOKEN", c.Embedder.Token)
	c.Server.Addr = envOrDefault("VISARCHIVE_ADDR", c.Server.Addr)
	c.Log.Level = envOrDefault("VISARCHIVE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOrDefault("VISARCHIVE_LOG_FORMAT", c.Log.Format)

	var err error
	if c.Embedder.Dimension, err = envIntOrDefault("VISARCHIVE_DIMENSION", c.Embedder.Dimension); err != nil {
		return err
	}
	if c.Query.TopK, err = envIntOrDefault("VISARCHIVE_TOP_K", c.Query.TopK); err != nil {
		return err
	}
	if labels := os.Getenv("VISARCHIVE_LABELS"); labels != "" {
		c.Embedder.Labels = splitList(labels)
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Archive.Backend {
	case BackendLocal:
		if c.Archive.IndexDir == "" {
			errs = append(errs, errors.New("archive.index_dir is required for the local backend"))
		}
	case BackendSQLite:
		if c.Archive.SQLitePath == "" {
			errs = append(errs, errors.New("archive.sqlite_path is required for the sqlite backend"))
		}
	case BackendS3:
		if c.Archive.S3.Bucket == "" {
			errs = append(errs, errors.New("archive.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive.backend %q", c.Archive.Backend))
	}
	switch c.Embedder.Provider {
	case ProviderHash:
	case ProviderCLIP:
		if c.Embedder.URL == "" {
			errs = append(errs, errors.New("embedder.url is required for the clip provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedder.provider %q", c.Embedder.Provider))
	}
	if c.Embedder.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedder.dimension must be positive, got %d", c.Embedder.Dimension))
	}
	if len(c.Embedder.Labels) == 0 {
		errs = append(errs, errors.New("embedder.labels must not be empty"))
	}
	if c.Query.TopK <= 0 || c.Query.CompactTopK <= 0 {
		errs = append(errs, fmt.Errorf("query.top_k and query.compact_top_k must be positive"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
