package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/oneuni/oneuni-backend/core"
	"github.com/oneuni/oneuni-backend/modules/auth"
	"github.com/oneuni/oneuni-backend/pkg/config"
	"github.com/oneuni/oneuni-backend/pkg/cookie"
	"github.com/oneuni/oneuni-backend/pkg/httpserver"
	"github.com/oneuni/oneuni-backend/pkg/logger"
	"github.com/oneuni/oneuni-backend/pkg/pg"
	"github.com/oneuni/oneuni-backend/pkg/ratelimit"
	"github.com/oneuni/oneuni-backend/pkg/redis"
	"github.com/oneuni/oneuni-backend/pkg/requestid"
)

type appConfig struct {
	Logger   logger.Config
	Postgres pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	Auth     auth.Config

	AuthRateLimit  int           `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateWindow time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Logger,
		logger.WithAttr(logger.Component("server")),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			id := requestid.FromContext(ctx)
			return slog.String("request_id", id), id != ""
		}),
	)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	tokens, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTTL, cfg.Auth.TempTTL)
	if err != nil {
		return err
	}

	storage := auth.NewPostgresStorage(pool)
	provider := auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURL)
	svc := auth.NewService(storage, tokens, auth.NewPasswordHasher(), provider, cfg.Auth.RefreshTTL,
		auth.WithLogger(log))

	transport := auth.NewTransport(cookie.New(), cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, cfg.Auth.CookieSecure)

	limiter, err := ratelimit.NewSlidingWindow(
		ratelimit.NewRedisStore(rdb, "rl:auth"), cfg.AuthRateLimit, cfg.AuthRateWindow)
	if err != nil {
		return err
	}

	handler := auth.NewHandler(svc, transport, tokens,
		auth.WithHandlerLogger(log),
		auth.WithRateLimiter(ratelimit.Middleware(limiter, ratelimit.ClientIP)),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(auth.CSRFMiddleware(cfg.Auth.CSRFExemptPaths))

	r.Get("/healthz", healthHandler(pg.Healthcheck(pool), redis.Healthcheck(rdb)))
	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", handler.Routes())
	})

	sweeper := auth.NewSweeper(svc, cfg.Auth.SweepEvery, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.New(cfg.HTTP, log).Run(ctx, r)
	})
	g.Go(func() error {
		if err := sweeper.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// healthHandler reports readiness of the backing stores.
func healthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				core.Error(w, r, http.StatusServiceUnavailable, "NOT_READY", err.Error())
				return
			}
		}
		core.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
