package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/hydrate"
	"github.com/tendant/simple-records/pkg/records/storage"
)

// Storage flag environment keys.
const (
	EnvPersistAsDocument = "PERSIST_CONTENT_AS_JSON"
	EnvPersistAsColumns  = "PERSIST_CONTENT_AS_COLUMNS"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//   PORT - Server port (default: "8080")
//   ENVIRONMENT - Runtime environment (default: "development")
//
// Database:
//   DATABASE_URL - One of:
//                  - "memory" or empty - In-memory database (default)
//                  - "postgres://..." or "postgresql://..." - PostgreSQL
//                  - "sqlite:///path/to/records.db" - SQLite file
//   DB_SCHEMA - Postgres schema (default: "records")
//
// Storage flags, read on every save:
//   PERSIST_CONTENT_AS_JSON - Write the contentlet_as_json document
//   PERSIST_CONTENT_AS_COLUMNS - Write pooled columns
//
// Content types:
//   SCHEMA_DIR - Directory of YAML content type definitions
//   SCHEMA_WATCH - Reload definitions on change
//
// Populate:
//   DEFAULT_LANGUAGE_ID - Language when a map names none (default: 1)
//   DEFAULT_INDEX_POLICY - DEFER, WAIT_FOR or FORCE
//
// Hydration:
//   ASSET_BASE_URL - Prefix of resource links
//   METADATA_URL - "s3://bucket/prefix?region=us-east-1&endpoint=...&temp=tmp/"
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		c.EnvPrefix = prefix

		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok && v != "" {
			c.DBSchema = v
		}

		if v, ok := lookupEnv(prefix, "SCHEMA_DIR"); ok && v != "" {
			c.SchemaDir = v
		}
		if watch, ok, err := parseBoolEnv(prefix, "SCHEMA_WATCH"); err != nil {
			return err
		} else if ok {
			c.WatchSchema = watch
		}

		if id, ok, err := parseIntEnv(prefix, "DEFAULT_LANGUAGE_ID"); err != nil {
			return err
		} else if ok {
			c.DefaultLanguageID = int64(id)
		}
		if v, ok := lookupEnv(prefix, "DEFAULT_INDEX_POLICY"); ok && v != "" {
			p, err := records.ParseIndexPolicy(v)
			if err != nil {
				return fmt.Errorf("invalid %sDEFAULT_INDEX_POLICY: %w", prefix, err)
			}
			c.DefaultIndexPolicy = p
		}

		if v, ok := lookupEnv(prefix, "ASSET_BASE_URL"); ok {
			c.AssetBaseURL = v
		}
		return applyMetadataEnv(prefix, c)
	}
}

// EnvFlags reads the storage flags from the environment each time the
// returned source is called. Unset or unparsable values are left nil.
func EnvFlags(prefix string) storage.FlagSource {
	return func() storage.Flags {
		var flags storage.Flags
		if v, ok, err := parseBoolEnv(prefix, EnvPersistAsDocument); err == nil && ok {
			flags.PersistAsDocument = &v
		}
		if v, ok, err := parseBoolEnv(prefix, EnvPersistAsColumns); err == nil && ok {
			flags.PersistAsColumns = &v
		}
		return flags
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	switch {
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = "sqlite"
		c.DatabaseURL = ""
		c.SQLitePath = path
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'sqlite://...')", dbURL)
	}
	return nil
}

// applyMetadataEnv configures S3 metadata hydration from a URL
// Format: s3://bucket/prefix?region=us-east-1&endpoint=http://localhost:9000&temp=tmp/
func applyMetadataEnv(prefix string, c *ServerConfig) error {
	raw, ok := lookupEnv(prefix, "METADATA_URL")
	if !ok || raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" {
		return fmt.Errorf("unsupported METADATA_URL format: %s (use 's3://bucket')", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in METADATA_URL")
	}

	q := u.Query()
	cfg := hydrate.S3Config{
		Bucket:       u.Host,
		Prefix:       strings.TrimPrefix(u.Path, "/"),
		Region:       q.Get("region"),
		Endpoint:     q.Get("endpoint"),
		UsePathStyle: q.Get("path_style") == "true",
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	// Check for AWS credentials in environment
	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		cfg.AccessKeyID = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		cfg.SecretAccessKey = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" && q.Get("region") == "" {
		cfg.Region = region
	}

	c.S3 = &cfg
	c.S3TempPrefix = q.Get("temp")
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
