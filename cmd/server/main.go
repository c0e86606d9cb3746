package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/product_api/internal/cache"
	"github.com/Skotchmaster/product_api/internal/config"
	"github.com/Skotchmaster/product_api/internal/db"
	"github.com/Skotchmaster/product_api/internal/es"
	"github.com/Skotchmaster/product_api/internal/events"
	"github.com/Skotchmaster/product_api/internal/httpserver"
	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/repo"
	"github.com/Skotchmaster/product_api/internal/service"
	"github.com/Skotchmaster/product_api/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	out, closer := logging.Output(cfg.LogFile)
	logger := logging.New(cfg.LogLevel, out).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	code := 0
	if len(os.Args) > 1 && os.Args[1] == "create-admin" {
		if err := createAdmin(cfg, os.Args[2:]); err != nil {
			logger.Error("create_admin_failed", "error", err)
			code = 1
		}
	} else if err := run(cfg, logger); err != nil {
		logger.Error("server_failed", "error", err)
		code = 1
	}

	// os.Exit skips deferred calls, so the log file is flushed here
	if err := closer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log output: %v\n", err)
	}
	os.Exit(code)
}

func openDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.CreateDatabase && cfg.DBDriver == db.DriverPostgres {
		created, err := db.EnsureDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if created {
			logger.Info("database_created")
		}
	}

	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return gdb, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	gdb, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}()

	ts, err := tokens.New(tokens.Config{Secret: cfg.JWTSecret, Method: cfg.JWTAlgorithm, TTL: cfg.AccessTokenTTL})
	if err != nil {
		return err
	}

	r := &repo.GormRepo{DB: gdb}
	catalog := service.NewCatalogService(r)
	authSvc := service.NewAuthService(r, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if created, err := authSvc.EnsureAdmin(ctx, cfg.Admin); err != nil {
		return err
	} else if created {
		logger.Info("admin_created", "username", cfg.Admin.Username)
	}

	var closers []io.Closer

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, cache.DefaultTTL)
		if err != nil {
			logger.Warn("redis_unavailable", "error", err)
		} else {
			catalog.Cache = rc
			closers = append(closers, rc)
			logger.Info("product_cache_enabled")
		}
	}

	if cfg.ES.URL != "" {
		if client, err := es.NewClient(ctx, cfg.ES); err != nil {
			logger.Warn("elasticsearch_unavailable", "error", err)
		} else {
			idx := es.NewIndex(client, cfg.ES.Index)
			if err := idx.Ensure(ctx); err != nil {
				logger.Warn("elasticsearch_index_error", "index", cfg.ES.Index, "error", err)
			} else {
				catalog.Search = idx
				logger.Info("search_index_enabled", "index", cfg.ES.Index)
				reindex(catalog, logger)
			}
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		catalog.Events = pub
		authSvc.Events = pub
		closers = append(closers, pub)
		logger.Info("events_enabled", "topic", cfg.KafkaTopic)
	}

	e := httpserver.NewEcho(logger, cfg.CORSAllowOrigins)
	httpserver.Register(e, &httpserver.Deps{
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalog},
		AuthHandler:    &httpserver.AuthHTTP{Svc: authSvc},
		Tokens:         ts,
		DB:             r,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting_down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close_error", "error", err)
		}
	}

	logger.Info("shutdown_complete")
	return nil
}

// reindex backfills the search index with rows written while it was
// unavailable. On failure search stays on the database and retries lazily.
func reindex(catalog *service.CatalogService, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := catalog.ReindexSearch(logging.IntoContext(ctx, logger)); err != nil {
		logger.Warn("search_reindex_failed", "error", err)
	}
}

// createAdmin provisions an admin account from flags, falling back to the
// ADMIN_* settings, then exits.
func createAdmin(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	username := fs.String("username", cfg.Admin.Username, "admin username")
	email := fs.String("email", cfg.Admin.Email, "admin email")
	password := fs.String("password", cfg.Admin.Password, "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	admin := config.AdminConfig{Username: *username, Email: *email, Password: *password}
	if !admin.Enabled() {
		return errors.New("username, email and password are required")
	}

	gdb, err := openDB(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	ts, err := tokens.New(tokens.Config{Secret: cfg.JWTSecret, Method: cfg.JWTAlgorithm, TTL: cfg.AccessTokenTTL})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := service.NewAuthService(&repo.GormRepo{DB: gdb}, ts).EnsureAdmin(ctx, admin)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("user %q or %q already exists", admin.Username, admin.Email)
	}
	slog.Info("admin_created", "username", admin.Username)
	return nil
}
