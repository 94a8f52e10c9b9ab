package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/catalog"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
	"github.com/tendant/simple-records/pkg/records/hydrate"
	"github.com/tendant/simple-records/pkg/records/repo/memory"
	repopg "github.com/tendant/simple-records/pkg/records/repo/postgres"
	"github.com/tendant/simple-records/pkg/records/repo/sqlite"
	"github.com/tendant/simple-records/pkg/records/storage"
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
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "records",
		SQLitePath:         "./data/records.db",
		DefaultLanguageID:  records.DefaultLanguageID,
		DefaultIndexPolicy: records.IndexPolicyDefer,
		AssetBaseURL:       "",
	}
}

// ServerConfig represents configuration for the records engine and its server
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use (default: records)
	SQLitePath   string

	// Storage representation. Nil leaves the decision to the environment,
	// read on every save.
	PersistAsDocument *bool
	PersistAsColumns  *bool
	EnvPrefix         string

	// Content types
	SchemaDir   string
	WatchSchema bool

	// Populate defaults
	DefaultLanguageID  int64
	DefaultIndexPolicy records.IndexPolicy

	// Hydration
	AssetBaseURL string
	S3           *hydrate.S3Config
	S3TempPrefix string
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
			return errors.New("sqlite_path is required when using sqlite")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	if c.DefaultLanguageID <= 0 {
		return fmt.Errorf("default language id must be positive, got: %d", c.DefaultLanguageID)
	}
	if c.WatchSchema && c.SchemaDir == "" {
		return errors.New("schema_dir is required to watch content types")
	}
	if c.S3 != nil && c.S3.Bucket == "" {
		return errors.New("s3 bucket is required for metadata hydration")
	}
	return nil
}

// FlagSource returns the storage flags. Flags set on the config win; the
// rest are read from the environment each time the source is called.
func (c *ServerConfig) FlagSource() storage.FlagSource {
	env := EnvFlags(c.EnvPrefix)
	document, columns := c.PersistAsDocument, c.PersistAsColumns
	return func() storage.Flags {
		flags := env()
		if document != nil {
			flags.PersistAsDocument = document
		}
		if columns != nil {
			flags.PersistAsColumns = columns
		}
		return flags
	}
}

// Backend is everything the engine needs from a database.
type Backend interface {
	storage.Backend
	records.HostStore
	records.FolderStore
	records.IdentifierStore
	records.CategoryStore
	records.ContentSearcher
}

// Engine is a wired records engine.
type Engine struct {
	Config     *ServerConfig
	Catalog    *catalog.Catalog
	Backend    Backend
	Store      *storage.Store
	Builder    *records.Builder
	Categories *records.CategoryResolver

	closers []func()
}

// Close releases database connections.
func (e *Engine) Close() {
	for _, c := range e.closers {
		c()
	}
}

// Watcher returns a catalog watcher for the schema directory, or nil when
// watching is off.
func (e *Engine) Watcher(logger *slog.Logger) *catalog.Watcher {
	if !e.Config.WatchSchema || e.Config.SchemaDir == "" {
		return nil
	}
	return catalog.NewWatcher(e.Catalog, e.Config.SchemaDir, catalog.WithWatchLogger(logger))
}

// BuildEngine creates the catalog, backend, store and builder from the
// server configuration.
func (c *ServerConfig) BuildEngine(ctx context.Context, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{Config: c}

	e.Catalog = c.BuildCatalog(logger)
	if err := e.Catalog.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load content types: %w", err)
	}

	backend, closer, err := c.buildBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend: %w", err)
	}
	e.Backend = backend
	if closer != nil {
		e.closers = append(e.closers, closer)
	}

	codec, err := c.buildCodec(ctx, backend, logger)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to build codec: %w", err)
	}

	e.Store, err = storage.NewStore(backend,
		storage.WithCatalog(e.Catalog),
		storage.WithCodec(codec),
		storage.WithFlagSource(c.FlagSource()),
		storage.WithLogger(logger),
	)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Builder, err = records.NewBuilder(
		records.WithCatalog(e.Catalog),
		records.WithCodec(codec),
		records.WithReferenceStores(records.ReferenceStores{
			Hosts:       backend,
			Folders:     backend,
			Identifiers: backend,
		}),
		records.WithContentFinder(e.Store),
		records.WithRelationshipResolver(records.NewRelationshipResolver(e.Catalog, backend, logger)),
		records.WithDefaultLanguage(c.DefaultLanguageID),
		records.WithDefaultIndexPolicy(c.DefaultIndexPolicy),
		records.WithLogger(logger),
	)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Categories = records.NewCategoryResolver(backend, logger)
	return e, nil
}

// BuildCatalog returns a catalog over SchemaDir, or an empty one.
func (c *ServerConfig) BuildCatalog(logger *slog.Logger) *catalog.Catalog {
	var loader catalog.Loader = catalog.Static()
	if c.SchemaDir != "" {
		loader = catalog.DirLoader{Dir: c.SchemaDir}
	}
	return catalog.New(loader, catalog.WithLogger(logger))
}

// buildBackend creates a Backend based on the configuration
func (c *ServerConfig) buildBackend(ctx context.Context) (Backend, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := c.newPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo := repopg.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	case "sqlite":
		repo, err := sqlite.Open(ctx, c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) newPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildCodec wires metadata hydration from S3 when configured. Temp
// resources are read from S3TempPrefix.
func (c *ServerConfig) buildCodec(ctx context.Context, backend Backend, logger *slog.Logger) (*fieldvalue.Codec, error) {
	link := &hydrate.LinkResolver{BaseURL: c.AssetBaseURL}
	if c.S3 == nil {
		return hydrate.NewCodec(nil, link, logger), nil
	}

	source, err := hydrate.NewS3MetadataSource(ctx, *c.S3)
	if err != nil {
		return nil, err
	}
	var opts []hydrate.MetadataOption
	if c.S3TempPrefix != "" {
		tempConfig := *c.S3
		tempConfig.Prefix = c.S3TempPrefix
		tempSource, err := hydrate.NewS3MetadataSource(ctx, tempConfig)
		if err != nil {
			return nil, err
		}
		temp, _ := backend.(records.TempResourceStore)
		opts = append(opts, hydrate.WithTempResources(temp, tempSource))
	}
	return hydrate.NewCodec(hydrate.NewMetadataResolver(source, opts...), link, logger), nil
}
