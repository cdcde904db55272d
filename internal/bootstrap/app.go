package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/data"
	"github.com/target/marketgate/internal/gate"
	httpx "github.com/target/marketgate/internal/http"
	"github.com/target/marketgate/internal/observability/metrics"
	"github.com/target/marketgate/internal/service"
	"github.com/target/marketgate/internal/session"
	"golang.org/x/sync/errgroup"
)

// App holds the wired dependencies of a serving process.
type App struct {
	Config   config.AppConfig
	Logger   *slog.Logger
	DB       *sql.DB
	Redis    redis.UniversalClient
	Metrics  *metrics.Metrics
	Auth     *service.AuthService
	Gate     *gate.Gate
	Sessions *session.Store
}

// Build connects the stores and wires every component the enabled services need.
// Close releases what Build opened, including on partial failure.
func Build(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	if err := app.build(ctx); err != nil {
		if closeErr := app.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	if cfg.Observability.MetricsEnabled {
		a.Metrics = metrics.New(metrics.Config{
			Namespace: cfg.Observability.MetricsNamespace,
		})
	}

	db, err := ConnectDB(ctx, DatabaseConfig{DBConfig: cfg.Postgres, Logger: a.Logger})
	if err != nil {
		return err
	}
	a.DB = db
	if cfg.Postgres.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, a.Logger); err != nil {
			return err
		}
	}

	if cfg.Redis.Enabled {
		client, err := ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.Redis, Logger: a.Logger})
		if err != nil {
			return err
		}
		a.Redis = client
	}

	a.Auth, err = BuildAuthService(ctx, AuthConfig{
		Auth:             cfg.Auth,
		Session:          cfg.Session,
		Users:            data.NewUserRepo(db),
		RedisClient:      a.Redis,
		RevocationPrefix: cfg.Redis.RevocationPrefix,
		IsDev:            cfg.IsDev,
		Logger:           a.Logger,
	})
	if err != nil {
		return err
	}

	a.Sessions, err = session.NewStore(SessionOptions(cfg.Session, cfg.IsDev))
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	a.Gate, err = BuildGate(GateConfig{Gate: cfg.Gate, Metrics: a.Metrics, Logger: a.Logger})
	return err
}

// Router returns the HTTP wiring for this app.
func (a *App) Router() (httpx.RouterServices, error) {
	upstream, err := a.Config.Gate.Upstream()
	if err != nil {
		return httpx.RouterServices{}, err
	}
	ready := map[string]httpx.ReadinessCheck{}
	if a.DB != nil {
		ready["postgres"] = a.DB.PingContext
	}
	if a.Redis != nil {
		client := a.Redis
		ready["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return httpx.RouterServices{
		Auth:           a.Auth,
		Sessions:       a.Sessions,
		Gate:           a.Gate,
		Metrics:        a.Metrics,
		Upstream:       upstream,
		Ready:          ready,
		TrustedOrigins: a.Config.HTTP.TrustedOrigins,
		Logger:         a.Logger,
	}, nil
}

// Run starts the enabled services and blocks until ctx is done or one fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.Config.IsHTTPServerEnabled() {
		router, err := a.Router()
		if err != nil {
			return err
		}
		server := NewHTTPServer(HTTPServerConfig{HTTP: a.Config.HTTP, Router: router, Logger: a.Logger})
		g.Go(func() error {
			return ServeHTTP(ctx, server, a.Config.HTTP, a.Logger)
		})
	}

	if a.Config.IsPolicyWatcherEnabled() {
		w, err := BuildPolicyWatcher(GateConfig{Gate: a.Config.Gate, Metrics: a.Metrics, Logger: a.Logger}, a.Gate)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("policy watcher: %w", err)
			}
			return nil
		})
	}

	a.Logger.InfoContext(ctx, "services started", "services", GetEnabledServices(&a.Config))
	return g.Wait()
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SessionOptions maps cookie config onto the session store. Secure is forced
// unless SESSION_COOKIE_SECURE=false or the app runs in development mode
// (DEV=true or NODE_ENV=development); TLS requests get it regardless.
func SessionOptions(c config.SessionConfig, isDev bool) session.Options {
	return session.Options{
		Name:   c.CookieName,
		Domain: c.CookieDomain,
		Secure: c.CookieSecure && !isDev,
	}
}
