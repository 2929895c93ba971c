package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"board/internal/auth"
	"board/internal/board"
	"board/internal/config"
	"board/internal/db"
	"board/internal/handlers"
	"board/internal/logger"
	"board/internal/ratelimit"
	"board/internal/repository"
	"board/internal/repository/docstore"
	"board/internal/repository/sqlstore"
	"board/internal/storage"
)

func setup(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "board"})
	return cfg, nil
}

// openEngine builds the collection engine for the file and memory drivers.
func openEngine(cfg *config.Config, reg prometheus.Registerer) (*storage.Engine, error) {
	var backend storage.Backend
	switch cfg.Storage.Driver {
	case "file":
		fb, err := storage.NewFileBackend(cfg.Storage.Dir, config.Duration(cfg.Storage.StaleLock))
		if err != nil {
			return nil, err
		}
		backend = fb
	case "memory":
		backend = storage.NewMemoryBackend()
	default:
		return nil, fmt.Errorf("driver %s has no collection engine", cfg.Storage.Driver)
	}
	return storage.NewEngine(backend, storage.Options{
		LockTimeout: config.Duration(cfg.Storage.LockTimeout),
		Registerer:  reg,
		Logger:      logger.Named("storage"),
	}), nil
}

func openStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*repository.Store, error) {
	switch cfg.Storage.Driver {
	case "file", "memory":
		e, err := openEngine(cfg, reg)
		if err != nil {
			return nil, err
		}
		return docstore.New(e), nil
	default:
		d, err := db.DialectFor(cfg.Storage.Driver)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.Open(d, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", d.Name, err)
		}
		if err := db.Migrate(ctx, sqlDB, d); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return sqlstore.New(sqlDB, d), nil
	}
}

func openLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func() error, error) {
	window := config.Duration(cfg.Rate.Window)
	if cfg.Rate.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.Rate.LoginLimit, window), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Rate.RedisAddr, DB: cfg.Rate.RedisDB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Rate.RedisAddr, err)
	}
	return ratelimit.NewRedis(client, "", cfg.Rate.LoginLimit, window), client.Close, nil
}

func serve(ctx context.Context, path string) error {
	cfg, err := setup(path)
	if err != nil {
		return err
	}
	log := logger.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := openStore(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store close", logger.Err(err))
		}
	}()

	tokens, err := auth.NewTokens(cfg.Tokens(), store.RefreshTokens)
	if err != nil {
		return err
	}
	hasher, err := auth.NewHasher(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		return err
	}
	svc, err := board.New(store, hasher, cfg.PasswordPolicy(), tokens)
	if err != nil {
		return err
	}
	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeLimiter() }()

	h := handlers.New(handlers.Config{
		Service:  svc,
		Tokens:   tokens,
		Users:    store.Users,
		Limiter:  limiter,
		Registry: reg,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h.Routes(),
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("driver", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout))
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func check(ctx context.Context, path string, out io.Writer) error {
	cfg, err := setup(path)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "file" {
		return fmt.Errorf("check reads collection units; driver %s has none", cfg.Storage.Driver)
	}
	e, err := openEngine(cfg, nil)
	if err != nil {
		return err
	}

	statuses := docstore.Check(ctx, e)
	bad := 0
	for _, st := range statuses {
		if st.Err != nil {
			bad++
			fmt.Fprintf(out, "%-16s FAIL %v\n", st.Collection, st.Err)
			continue
		}
		fmt.Fprintf(out, "%-16s ok   %d records\n", st.Collection, st.Records)
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d collections unreadable", bad, len(statuses))
	}
	return nil
}
