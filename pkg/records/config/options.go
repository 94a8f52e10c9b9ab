package config

import (
	"fmt"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/hydrate"
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

// WithDatabase configures the database backend. For sqlite the url is the
// database file path.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
		case "postgres":
			if url == "" {
				return fmt.Errorf("database URL is required for postgres")
			}
			c.DatabaseURL = url
		case "sqlite":
			if url != "" {
				c.SQLitePath = url
			}
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

// WithPersistence pins the storage flags. A nil flag stays environment driven.
func WithPersistence(asDocument, asColumns *bool) Option {
	return func(c *ServerConfig) error {
		c.PersistAsDocument = asDocument
		c.PersistAsColumns = asColumns
		return nil
	}
}

// WithSchemaDir loads content types from dir, optionally reloading on change
func WithSchemaDir(dir string, watch bool) Option {
	return func(c *ServerConfig) error {
		if dir == "" {
			return fmt.Errorf("schema directory cannot be empty")
		}
		c.SchemaDir = dir
		c.WatchSchema = watch
		return nil
	}
}

// WithDefaultLanguage sets the language used when a map names none
func WithDefaultLanguage(id int64) Option {
	return func(c *ServerConfig) error {
		if id <= 0 {
			return fmt.Errorf("default language id must be positive, got: %d", id)
		}
		c.DefaultLanguageID = id
		return nil
	}
}

// WithDefaultIndexPolicy sets the index policy fallback by name
func WithDefaultIndexPolicy(name string) Option {
	return func(c *ServerConfig) error {
		p, err := records.ParseIndexPolicy(name)
		if err != nil {
			return err
		}
		c.DefaultIndexPolicy = p
		return nil
	}
}

// WithAssetBaseURL sets the prefix of hydrated resource links
func WithAssetBaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.AssetBaseURL = url
		return nil
	}
}

// WithS3Metadata reads file metadata from S3 object headers. tempPrefix,
// when set, is where uploads that are not yet content live.
func WithS3Metadata(cfg hydrate.S3Config, tempPrefix string) Option {
	return func(c *ServerConfig) error {
		if cfg.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
		c.S3 = &cfg
		c.S3TempPrefix = tempPrefix
		return nil
	}
}
