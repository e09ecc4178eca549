package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"eastviewpta.org/internal/audit"
	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/cache"
	"eastviewpta.org/internal/calendar"
	"eastviewpta.org/internal/config"
	"eastviewpta.org/internal/httpapi"
	"eastviewpta.org/internal/migrate"
	"eastviewpta.org/internal/obs"
	"eastviewpta.org/internal/pta"
	"eastviewpta.org/internal/scheduler"
	"eastviewpta.org/internal/site"
	"eastviewpta.org/internal/store/mongo"
	"eastviewpta.org/internal/store/pg"
	"eastviewpta.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is what every storage option provides to the service and auth.
type backend interface {
	pta.Store
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	obs.SetLogger(obs.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat))
	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	kv, err := cache.New(cfg.RedisURL, cfg.CachePrefix, cfg.CalendarFreshFor)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer kv.Close()

	var provider calendar.Provider = calendar.Disabled{}
	if cfg.CalendarEnabled() {
		g, err := calendar.NewGoogle(calendar.GoogleConfig{
			BaseURL:     cfg.CalendarBaseURL,
			CalendarID:  cfg.CalendarID,
			APIKey:      cfg.CalendarAPIKey,
			AccessToken: cfg.CalendarToken,
			TimeZone:    cfg.TimeZone,
			Timeout:     cfg.CalendarTimeout,
			Logger:      logger.With("module", "calendar"),
		})
		if err != nil {
			return err
		}
		provider = g
	} else {
		logger.Warn("calendar credentials not configured; calendar endpoints will report unavailable")
	}
	mirror := calendar.NewMirror(provider, kv,
		calendar.WithFreshFor(cfg.CalendarFreshFor),
		calendar.WithLocation(cfg.Location()),
	)

	activity := stream.New()
	svc := pta.NewService(store,
		pta.WithLogger(logger),
		pta.WithPasswordHasher(auth.HashPassword),
		pta.WithObserver(pta.Observers(
			audit.Observer{},
			activity,
			pta.ObserverFunc(func(_ context.Context, c pta.Change) {
				obs.ObserveTransition(c.Entity, string(c.Transition))
			}),
		)),
	)

	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	catalog, err := site.Load()
	if err != nil {
		return fmt.Errorf("site catalog: %w", err)
	}

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	ready := httpapi.ReadyProbe{Checks: map[string]func(context.Context) error{
		"store": store.Ping,
		"cache": kv.Ping,
	}}

	api := httpapi.New(httpapi.Deps{
		Service:           svc,
		Verifier:          auth.NewVerifier(tokens, store),
		Auth:              auth.NewAuthenticator(store, tokens),
		Calendar:          mirror,
		Catalog:           catalog,
		Stream:            activity,
		Ready:             ready,
		Version:           version,
		CORSOrigins:       cfg.CORSOrigins,
		TrustedProxies:    proxies,
		AuthRatePerMinute: cfg.AuthRateLimit,
	})

	jobs := scheduler.New(svc, mirror, scheduler.Config{
		CompleteEventsSpec: cfg.CompleteEventsSpec,
		WarmCalendarSpec:   cfg.WarmCalendarSpec,
	})
	if err := jobs.Start(); err != nil {
		return err
	}
	defer jobs.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// activity stream responses stay open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	health := httpapi.NewHealthServer(ready, 10*time.Second)
	health.Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting http server", "addr", srv.Addr, "version", version, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()
	go func() {
		logger.Info("starting grpc health server", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go health.Run(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	switch cfg.Store {
	case "postgres":
		s, err := pg.Open(cfg.PgDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.AutoMigrate {
			mgr := migrate.NewManager(s.DB(), pg.Migrations(), nil)
			if err := mgr.Up(ctx); err != nil {
				_ = s.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return s, func() { _ = s.Close() }, nil
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongo.Connect(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		if err := s.EnsureIndexes(connectCtx); err != nil {
			_ = s.Close(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Close(closeCtx)
		}, nil
	default:
		obs.Logger().Warn("using in-memory store; data is lost on restart")
		return memoryBackend{pta.NewInMemory()}, func() {}, nil
	}
}

type memoryBackend struct{ *pta.InMemory }

func (memoryBackend) Ping(context.Context) error { return nil }
