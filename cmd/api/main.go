// Command api runs the modvault request edge.
//
// Usage:
//
//	api serve --env-file .env
//	api migrate up
//	api policies --policy-file policies.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/modvault/modvault/internal/auth"
	"github.com/modvault/modvault/internal/config"
	"github.com/modvault/modvault/internal/database"
	"github.com/modvault/modvault/internal/kv"
	"github.com/modvault/modvault/internal/ratelimit"
	"github.com/modvault/modvault/internal/server"
	"github.com/modvault/modvault/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" default:"1" help:"Start the API server."`
	Migrate  MigrateCmd  `cmd:"" help:"Apply or roll back database migrations."`
	Policies PoliciesCmd `cmd:"" help:"Print the active rate limit policies."`

	EnvFile    string `name:"env-file" help:"Dotenv file loaded before reading the environment." type:"path"`
	PolicyFile string `name:"policy-file" help:"YAML file overriding the built-in rate limit policies." type:"path"`
}

// load reads configuration and applies flag overrides.
func (c *CLI) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadFile(c.EnvFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.PolicyFile != "" {
		cfg.Rate.PolicyFile = c.PolicyFile
	}
	log := logger.New(os.Stdout, cfg.App.LogLevel).With("env", cfg.App.Env)
	return cfg, log, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("api"),
		kong.Description("Rate-limited API edge for the modvault marketplace."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// ServeCmd starts the HTTP server.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, log, err := cli.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	store, closers, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAll(closers)

	opts := []server.Option{
		server.WithCatalog(catalog),
		server.WithChecker(newChecker(cfg, store, log)),
	}
	if cfg.Auth.Enabled() {
		verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithVerifier(verifier))
	}

	srv, err := server.New(cfg, log, opts...)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	srv.HealthHandler().AddCheck("store", store.Ping)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadCatalog returns the built-in catalog or one read from the policy file.
func loadCatalog(cfg *config.Config) (*ratelimit.Catalog, error) {
	if cfg.Rate.PolicyFile == "" {
		return ratelimit.DefaultCatalog(), nil
	}
	catalog, err := ratelimit.LoadCatalogFile(cfg.Rate.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	return catalog, nil
}

// openStore connects the configured counter store. The returned closers run
// in reverse order on shutdown.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (kv.Store, []func(), error) {
	var closers []func()

	switch cfg.Store.Backend {
	case config.StoreMemory:
		log.Warn("using in-memory counter store; limits are per process")
		store := kv.NewMemoryStore(kv.WithSweepInterval(cfg.Store.SweepInterval))
		closers = append(closers, func() { _ = store.Close() })
		return kv.Instrumented(store, config.StoreMemory), closers, nil

	case config.StoreRedis:
		store, err := kv.NewRedisStore(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("connected to redis", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
		closers = append(closers, func() { _ = store.Close() })
		return kv.Instrumented(store, config.StoreRedis), closers, nil

	case config.StorePostgres:
		pool, err := database.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := migrate(ctx, pool, log); err != nil {
			closeAll(closers)
			return nil, nil, err
		}

		store := kv.NewPostgresStore(pool)
		if cfg.Store.SweepInterval > 0 {
			sweepCtx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				store.RunSweeper(sweepCtx, cfg.Store.SweepInterval, log.Named("kv"))
			}()
			closers = append(closers, func() {
				cancel()
				<-done
			})
		}
		log.Info("connected to postgres", "host", cfg.Database.Host, "database", cfg.Database.DBName)
		return kv.Instrumented(store, config.StorePostgres), closers, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Store.Backend)
}

// migrate brings the counter table up to date.
func migrate(ctx context.Context, pool *database.Pool, log *logger.Logger) error {
	migrator, err := database.NewMigrator(pool)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if applied > 0 {
		log.Info("applied migrations", "count", applied)
	}
	return nil
}

func closeAll(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// newChecker picks the limiter implementation for the configured store.
func newChecker(cfg *config.Config, store kv.Store, log *logger.Logger) ratelimit.Checker {
	if cfg.Rate.Atomic {
		if rs, ok := kv.Unwrap(store).(*kv.RedisStore); ok {
			log.Info("using atomic redis rate limiter")
			return ratelimit.NewAtomicLimiter(rs.Client())
		}
	}
	return ratelimit.NewLimiter(store, ratelimit.WithLogger(log.Named("ratelimit")))
}

// MigrateCmd applies or rolls back migrations.
type MigrateCmd struct {
	Direction string `arg:"" optional:"" enum:"up,down,version" default:"up" help:"up, down (one step) or version."`
}

func (c *MigrateCmd) Run(cli *CLI) error {
	cfg, log, err := cli.load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	migrator, err := database.NewMigrator(pool)
	if err != nil {
		return err
	}
	switch c.Direction {
	case "down":
		err = migrator.Down(ctx)
	case "version":
	default:
		_, err = migrator.Up(ctx)
	}
	if err != nil {
		return err
	}

	version, err := migrator.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	log.Info("migrations complete", "direction", c.Direction, "version", version)
	return nil
}

// PoliciesCmd prints the policy catalog.
type PoliciesCmd struct{}

func (c *PoliciesCmd) Run(cli *CLI) error {
	cfg, _, err := cli.load()
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	for _, p := range catalog.Policies() {
		fmt.Printf("%-22s %-22s %5d req / %ds\n", p.Name, p.Identifier, p.MaxRequests, p.WindowSeconds)
	}
	return nil
}
