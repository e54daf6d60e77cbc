package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/providerhub/internal/config"
	"github.com/ehr/providerhub/internal/directory"
	"github.com/ehr/providerhub/internal/domain/ehrsystem"
	"github.com/ehr/providerhub/internal/domain/fetchhistory"
	"github.com/ehr/providerhub/internal/domain/provider"
	"github.com/ehr/providerhub/internal/domain/user"
	"github.com/ehr/providerhub/internal/platform/blobstore"
	"github.com/ehr/providerhub/internal/platform/db"
	"github.com/ehr/providerhub/internal/platform/lock"
	"github.com/ehr/providerhub/internal/platform/middleware"
	"github.com/ehr/providerhub/internal/platform/notification"
	"github.com/ehr/providerhub/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "providerhub-server",
		Short: "Provider directory API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// migrationFiles returns the embedded migrations, or dir when one is given.
func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationFiles(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationFiles(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := provider.NewService(provider.NewRepo(pool), lock.NewMemoryLocker(),
				blobstore.NewInMemoryStore(cfg.S3Bucket), nil, newLogger(cfg.Env))
			created, skipped, err := seedProviders(ctx, svc)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d provider(s), %d already present.\n", created, skipped)
			return nil
		},
	}
}

type providerCreator interface {
	Create(ctx context.Context, in *provider.InsertProvider) (*provider.Provider, error)
}

// seedProviders inserts the sample providers, skipping ones whose group id is
// already taken.
func seedProviders(ctx context.Context, svc providerCreator) (created, skipped int, err error) {
	for _, in := range directory.SampleInserts() {
		if _, err := svc.Create(ctx, in); err != nil {
			if errors.Is(err, provider.ErrDuplicate) {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("seed %s: %w", in.Name, err)
		}
		created++
	}
	return created, skipped, nil
}

// ---------------------------------------------------------------------------
// Backends
// ---------------------------------------------------------------------------

// backends are the optional external services. Each falls back to an
// in-process implementation when it is not configured.
type backends struct {
	locker  lock.Locker
	blobs   blobstore.Store
	sinks   []notification.Sink
	checks  []db.Check
	closers []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		locker := lock.NewRedisLocker(client, "providerhub:lock:")
		b.locker = locker
		b.checks = append(b.checks, db.Check{Name: "redis", Ping: locker.Ping})
		b.closers = append(b.closers, client.Close)
		logger.Info().Msg("using redis refresh lock")
	} else {
		b.locker = lock.NewMemoryLocker()
		logger.Warn().Msg("REDIS_URL not set; refresh lock is per process")
	}

	if cfg.ObjectStorageEnabled() {
		store, err := blobstore.NewMinioStore(blobstore.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.blobs = store
		b.checks = append(b.checks, db.Check{Name: "object_storage", Ping: store.Ping})
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("using object storage for snapshots")
	} else {
		b.blobs = blobstore.NewInMemoryStore(cfg.S3Bucket)
		logger.Warn().Msg("S3_ENDPOINT not set; snapshots are kept in memory")
	}

	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		sink, err := notification.NewAMQPSink(conn, cfg.AMQPExchange)
		if err != nil {
			conn.Close()
			b.Close()
			return nil, err
		}
		b.sinks = append(b.sinks, sink)
		b.checks = append(b.checks, db.Check{Name: "amqp", Ping: func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}})
		b.closers = append(b.closers, conn.Close, sink.Close)
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing notifications to amqp")
	}

	return b, nil
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}

type server struct {
	echo     *echo.Echo
	sessions *directory.Sessions
}

func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, b *backends) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, directory.SessionHeader},
	}))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/ready", db.HealthHandler(pool, b.checks...))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(middleware.BodyLimit(cfg.BodyLimit))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout, middleware.PathSuffix("/snapshot")))

	// Notifications
	sinks := append([]notification.Sink{notification.NewLogSink(logger)}, b.sinks...)
	center := notification.NewCenter(logger, nil, sinks...)
	notification.NewHandler(center).RegisterRoutes(apiV1)

	// Domain services
	systemSvc := ehrsystem.NewService(ehrsystem.NewRepo(pool))
	historySvc := fetchhistory.NewService(fetchhistory.NewRepo(pool), b.blobs, cfg.S3Bucket)
	providerSvc := provider.NewService(provider.NewRepo(pool), b.locker, b.blobs, historySvc, logger)
	providerSvc.SetLockTTL(cfg.RefreshLockTTL)
	providerSvc.SetSystemLister(systemSvc)
	userSvc := user.NewService(user.NewRepo(pool))

	provider.NewHandler(providerSvc).RegisterRoutes(apiV1)
	ehrsystem.NewHandler(systemSvc).RegisterRoutes(apiV1)
	fetchhistory.NewHandler(historySvc).RegisterRoutes(apiV1)
	user.NewHandler(userSvc).RegisterRoutes(apiV1)

	// Directory sessions
	sessions := directory.NewSessions(directory.NewServiceSource(providerSvc), center,
		[]byte(cfg.SessionSecret), cfg.SessionTTL, logger)
	directory.NewHandler(sessions).RegisterRoutes(apiV1)

	return &server{echo: e, sessions: sessions}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	logger := newLogger(os.Getenv("ENV"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open backends")
	}
	defer b.Close()

	srv := newServer(cfg, logger, pool, b)
	srv.sessions.StartCleanup(ctx, time.Minute)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
