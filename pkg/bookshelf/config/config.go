package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/repo/memory"
	repopg "github.com/tendant/simple-bookshelf/pkg/bookshelf/repo/postgres"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fallback"
	fsstorage "github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/fs"
	memorystorage "github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/memory"
	s3storage "github.com/tendant/simple-bookshelf/pkg/bookshelf/storage/s3"
)

// DefaultJWTSecret is only accepted outside production
const DefaultJWTSecret = "change-me"

// Remote storage kinds
const (
	RemoteNone   = "none"
	RemoteMemory = "memory"
	RemoteS3     = "s3"
)

// ServerConfig represents server configuration for the bookshelf service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// DatabaseURL is "memory" or a postgres connection string
	DatabaseURL string `env:"DATABASE_URL" env-default:"memory"`

	Local  LocalStorageConfig
	Remote RemoteStorageConfig

	MaxUploadSize      int64  `env:"MAX_UPLOAD_SIZE" env-default:"10485760"`
	JWTSecret          string `env:"JWT_SECRET" env-default:"change-me"`
	EnableEventLogging bool   `env:"EVENT_LOGGING" env-default:"true"`
}

// LocalStorageConfig configures the filesystem fallback
type LocalStorageConfig struct {
	UploadDir string `env:"UPLOAD_DIR" env-default:"./uploads"`
	URLPrefix string `env:"UPLOAD_URL_PREFIX" env-default:"/uploads"`
}

// RemoteStorageConfig configures the preferred remote object store
type RemoteStorageConfig struct {
	Kind       string        `env:"REMOTE_STORAGE" env-default:"none"` // none, memory, s3
	RootFolder string        `env:"REMOTE_ROOT_FOLDER" env-default:"islamic_books"`
	Timeout    time.Duration `env:"REMOTE_TIMEOUT" env-default:"30s"`

	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `env:"AWS_S3_BUCKET"`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	PublicBaseURL   string `env:"AWS_S3_PUBLIC_BASE_URL"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// Load reads the optional env files, then the environment, and validates
// the result. Variables already set in the environment win over env files.
func Load(envFiles ...string) (*ServerConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			slog.Debug("Env file not loaded", "file", file, "error", err)
		}
	}

	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsPostgres reports whether the repository is backed by postgres
func (c *ServerConfig) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseURL != "memory" && !c.IsPostgres() {
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgres://...')", c.DatabaseURL)
	}

	if c.Local.UploadDir == "" {
		return errors.New("upload_dir is required")
	}
	if !strings.HasPrefix(c.Local.URLPrefix, "/") || c.Local.URLPrefix == "/" {
		return fmt.Errorf("UPLOAD_URL_PREFIX must be an absolute path below /, got %q", c.Local.URLPrefix)
	}

	switch c.Remote.Kind {
	case RemoteNone, RemoteMemory:
	case RemoteS3:
		if c.Remote.Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required when REMOTE_STORAGE=s3")
		}
	default:
		return fmt.Errorf("unsupported REMOTE_STORAGE: %s (use 'none', 'memory' or 's3')", c.Remote.Kind)
	}

	if c.MaxUploadSize <= 0 {
		return errors.New("max_upload_size must be positive")
	}

	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.Environment == "production" && c.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be changed in production")
	}

	return nil
}

// Components is the assembled bookshelf runtime
type Components struct {
	Service    bookshelf.Service
	Repository bookshelf.Repository
	Assets     *fallback.Store
	Gateway    *bookshelf.StreamingGateway

	pool *pgxpool.Pool
}

// Close releases the database pool, if any
func (c *Components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Build creates the repository, the storage facade and the service from the
// server configuration
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	comps := &Components{}

	repo, err := c.buildRepository(ctx, comps)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	comps.Repository = repo

	assets, err := c.buildAssetStore(ctx, logger)
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build asset store: %w", err)
	}
	comps.Assets = assets
	comps.Gateway = bookshelf.NewStreamingGateway(assets)

	options := []bookshelf.Option{
		bookshelf.WithRepository(repo),
		bookshelf.WithAssetStore(assets),
		bookshelf.WithLogger(logger),
		bookshelf.WithMaxUploadSize(c.MaxUploadSize),
	}
	if c.EnableEventLogging {
		options = append(options, bookshelf.WithEventSink(bookshelf.NewLoggingEventSink(logger)))
	}

	svc, err := bookshelf.New(options...)
	if err != nil {
		comps.Close()
		return nil, err
	}
	comps.Service = svc
	return comps, nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context) (bookshelf.Service, error) {
	comps, err := c.Build(ctx, nil)
	if err != nil {
		return nil, err
	}
	return comps.Service, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, comps *Components) (bookshelf.Repository, error) {
	if !c.IsPostgres() {
		return memory.New(), nil
	}

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := repopg.NewWithPool(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	comps.pool = pool
	return repo, nil
}

// buildAssetStore creates the remote-first storage facade
func (c *ServerConfig) buildAssetStore(ctx context.Context, logger *slog.Logger) (*fallback.Store, error) {
	local, err := fsstorage.New(fsstorage.Config{
		BaseDir:   c.Local.UploadDir,
		URLPrefix: c.Local.URLPrefix,
	})
	if err != nil {
		return nil, err
	}

	options := []fallback.Option{fallback.WithLogger(logger)}
	remote, err := c.buildRemote(ctx)
	if err != nil {
		return nil, err
	}
	if remote != nil {
		options = append(options, fallback.WithRemote(remote))
	}

	return fallback.New(local, options...)
}

func (c *ServerConfig) buildRemote(ctx context.Context) (bookshelf.BlobBackend, error) {
	var api s3storage.ObjectAPI
	switch c.Remote.Kind {
	case RemoteNone:
		return nil, nil
	case RemoteMemory:
		api = memorystorage.New()
	case RemoteS3:
		client, err := s3storage.NewClient(ctx, s3storage.Config{
			Region:                 c.Remote.Region,
			Bucket:                 c.Remote.Bucket,
			AccessKeyID:            c.Remote.AccessKeyID,
			SecretAccessKey:        c.Remote.SecretAccessKey,
			Endpoint:               c.Remote.Endpoint,
			UsePathStyle:           c.Remote.UsePathStyle,
			PublicBaseURL:          c.Remote.PublicBaseURL,
			CreateBucketIfNotExist: c.Remote.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		api = client
	default:
		return nil, fmt.Errorf("unsupported remote storage: %s", c.Remote.Kind)
	}

	return s3storage.NewBackend(api, s3storage.BackendConfig{
		RootFolder: c.Remote.RootFolder,
		Timeout:    c.Remote.Timeout,
	})
}
