package config

import (
	"fmt"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia/objectkey"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend. For sqlite, url is the file path.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
			c.DatabaseURL = ""
		case "postgres":
			if url == "" {
				return fmt.Errorf("database URL is required for postgres")
			}
			c.DatabaseURL = url
		case "sqlite":
			if url == "" {
				return fmt.Errorf("database path is required for sqlite")
			}
			c.SQLitePath = url
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithDefaultStorage sets the default storage backend name
func WithDefaultStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("default storage backend name cannot be empty")
		}
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithMemoryStorage adds a memory storage backend (for testing)
// If name is empty, defaults to "memory"
func WithMemoryStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "memory"
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "memory",
		})
		return nil
	}
}

// WithFilesystemStorage adds a filesystem storage backend
// If name is empty, defaults to "fs"
func WithFilesystemStorage(name, baseDir string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "fs"
		}
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name:   name,
			Type:   "fs",
			Config: map[string]interface{}{"base_dir": baseDir},
		})
		return nil
	}
}

// WithS3Storage adds an S3 storage backend
// If name is empty, defaults to "s3"
func WithS3Storage(name, bucket, region string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "s3"
		}
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		})
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(name, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "s3"
		}
		for i := range c.StorageBackends {
			if c.StorageBackends[i].Name == name && c.StorageBackends[i].Type == "s3" {
				c.StorageBackends[i].Config["endpoint"] = endpoint
				c.StorageBackends[i].Config["use_path_style"] = usePathStyle
				return nil
			}
		}
		return fmt.Errorf("S3 backend %q is not configured", name)
	}
}

// WithMinioStorage adds a MinIO storage backend
// If name is empty, defaults to "minio"
func WithMinioStorage(name, endpoint, accessKey, secretKey, bucket string, useSSL bool) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "minio"
		}
		if endpoint == "" || bucket == "" {
			return fmt.Errorf("MinIO endpoint and bucket cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "minio",
			Config: map[string]interface{}{
				"endpoint":   endpoint,
				"access_key": accessKey,
				"secret_key": secretKey,
				"bucket":     bucket,
				"use_ssl":    useSSL,
			},
		})
		return nil
	}
}

// WithObjectKeyGenerator sets the object key generation strategy
// Valid values: "flat", "git-like"
func WithObjectKeyGenerator(generator string) Option {
	return func(c *ServerConfig) error {
		if _, err := objectkey.ByName(generator); err != nil {
			return err
		}
		c.ObjectKeyGenerator = generator
		return nil
	}
}

// WithThumbnails enables or disables thumbnail generation
func WithThumbnails(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableThumbnails = enabled
		return nil
	}
}

// WithFFmpeg sets the ffmpeg and ffprobe binaries
func WithFFmpeg(ffmpegPath, ffprobePath string) Option {
	return func(c *ServerConfig) error {
		if ffmpegPath != "" {
			c.FFmpegPath = ffmpegPath
		}
		if ffprobePath != "" {
			c.FFprobePath = ffprobePath
		}
		return nil
	}
}

// WithThumbnailOffset sets how far into a clip the thumbnail frame is taken
func WithThumbnailOffset(offset time.Duration) Option {
	return func(c *ServerConfig) error {
		if offset <= 0 {
			return fmt.Errorf("thumbnail offset must be positive, got: %s", offset)
		}
		c.ThumbnailOffset = offset
		return nil
	}
}

// WithThumbnailEncoding sets JPEG quality and maximum thumbnail width
func WithThumbnailEncoding(quality int, maxWidth uint) Option {
	return func(c *ServerConfig) error {
		if quality < 1 || quality > 100 {
			return fmt.Errorf("thumbnail quality must be between 1 and 100, got: %d", quality)
		}
		c.ThumbnailQuality = quality
		c.ThumbnailMaxWidth = maxWidth
		return nil
	}
}

// WithEventLogging enables or disables event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithAMQP publishes lifecycle events to a RabbitMQ exchange
func WithAMQP(url, exchange string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("AMQP URL cannot be empty")
		}
		c.AMQPURL = url
		if exchange != "" {
			c.AMQPExchange = exchange
		}
		return nil
	}
}
