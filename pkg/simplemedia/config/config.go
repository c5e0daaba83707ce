package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-media/pkg/simplemedia"
	amqpsink "github.com/tendant/simple-media/pkg/simplemedia/events/amqp"
	"github.com/tendant/simple-media/pkg/simplemedia/frame/ffmpeg"
	"github.com/tendant/simple-media/pkg/simplemedia/imaging"
	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
	"github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
	repopg "github.com/tendant/simple-media/pkg/simplemedia/repo/postgres"
	"github.com/tendant/simple-media/pkg/simplemedia/repo/sqlite"
	fsstorage "github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	miniostorage "github.com/tendant/simple-media/pkg/simplemedia/storage/minio"
	s3storage "github.com/tendant/simple-media/pkg/simplemedia/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]interface{}{},
			},
		},
		ObjectKeyGenerator: "flat",
		EnableThumbnails:   true,
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		ThumbnailOffset:    simplemedia.DefaultFrameOffset,
		ThumbnailQuality:   imaging.DefaultQuality,
		ThumbnailMaxWidth:  imaging.DefaultMaxWidth,
		AMQPExchange:       amqpsink.DefaultExchange,
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the simple-media service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use; empty keeps the server default
	SQLitePath   string

	// Storage configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig
	ObjectKeyGenerator    string // "flat", "git-like"

	// Thumbnail generation
	EnableThumbnails  bool
	FFmpegPath        string
	FFprobePath       string
	ThumbnailOffset   time.Duration
	ThumbnailQuality  int
	ThumbnailMaxWidth uint

	// Events
	EnableEventLogging bool
	AMQPURL            string
	AMQPExchange       string
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3", "minio"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required when using sqlite")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	if _, err := c.defaultBackend(); err != nil {
		return err
	}

	if _, err := objectkey.ByName(c.ObjectKeyGenerator); err != nil {
		return err
	}

	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return fmt.Errorf("thumbnail quality must be between 1 and 100, got: %d", c.ThumbnailQuality)
	}
	if c.ThumbnailOffset < 0 {
		return errors.New("thumbnail offset cannot be negative")
	}

	return nil
}

func (c *ServerConfig) defaultBackend() (StorageBackendConfig, error) {
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			return backend, nil
		}
	}
	return StorageBackendConfig{}, fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
}

// BuildService creates a Service from the configuration. Extra options are
// applied after the configured ones. The returned cleanup releases database
// pools and broker connections opened here.
func (c *ServerConfig) BuildService(logger *slog.Logger, extra ...simplemedia.Option) (simplemedia.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", "error", err)
			}
		}
	}

	options := []simplemedia.Option{simplemedia.WithLogger(logger)}

	// Set up repository
	repo, closeRepo, err := c.buildRepository()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}
	options = append(options, simplemedia.WithRepository(repo))

	// Set up the blob store
	backend, err := c.defaultBackend()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	store, err := c.buildStorageBackend(backend)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", backend.Name, err)
	}
	options = append(options, simplemedia.WithBlobStore(store))

	keys, err := objectkey.ByName(c.ObjectKeyGenerator)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	options = append(options, simplemedia.WithKeyGenerator(keys))

	// Set up thumbnail generation
	if c.EnableThumbnails {
		options = append(options,
			simplemedia.WithFrameExtractor(ffmpeg.New(ffmpeg.Config{
				FFmpegPath:  c.FFmpegPath,
				FFprobePath: c.FFprobePath,
			})),
			simplemedia.WithImageEncoder(&imaging.Encoder{
				Quality:  c.ThumbnailQuality,
				MaxWidth: c.ThumbnailMaxWidth,
			}),
			simplemedia.WithFrameOffset(c.ThumbnailOffset),
		)
	}

	// Set up event sinks
	var sinks simplemedia.MultiEventSink
	if c.EnableEventLogging {
		sinks = append(sinks, simplemedia.NewLoggingEventSink(logger))
	}
	if c.AMQPURL != "" {
		sink, closeSink, err := amqpsink.Dial(c.AMQPURL, c.AMQPExchange)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, closeSink)
		sinks = append(sinks, sink)
	}
	if len(sinks) > 0 {
		options = append(options, simplemedia.WithEventSink(sinks))
	}

	options = append(options, extra...)
	svc, err := simplemedia.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository() (simplemedia.Repository, func() error, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, nil, errors.New("database_url is required for postgres")
		}
		pool, err := newPool(c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repopg.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repopg.NewWithPool(pool), func() error { pool.Close(); return nil }, nil
	case "sqlite":
		repo, err := sqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := newPool(databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (simplemedia.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			KeyPrefix:              getString(config.Config, "key_prefix", ""),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:               getString(config.Config, "endpoint", ""),
			AccessKey:              getString(config.Config, "access_key", ""),
			SecretKey:              getString(config.Config, "secret_key", ""),
			Bucket:                 getString(config.Config, "bucket", ""),
			Region:                 getString(config.Config, "region", ""),
			UseSSL:                 getBool(config.Config, "use_ssl", false),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", true),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
