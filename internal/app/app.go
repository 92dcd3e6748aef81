// Package app wires the storefront API together: configuration, storage,
// domain services, HTTP server, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/velaluna/storefront-api/internal/backend"
	"github.com/velaluna/storefront-api/internal/catalog"
	"github.com/velaluna/storefront-api/internal/domain/cart"
	"github.com/velaluna/storefront-api/internal/domain/checkout"
	"github.com/velaluna/storefront-api/internal/domain/shipping"
	"github.com/velaluna/storefront-api/internal/handler"
	"github.com/velaluna/storefront-api/internal/storage/postgres"
	redisstore "github.com/velaluna/storefront-api/internal/storage/redis"
	"github.com/velaluna/storefront-api/pkg/health"
	"github.com/velaluna/storefront-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, _ *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis client for cart storage.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	// Storage.
	productRepo := postgres.NewProductRepository(pool)
	submissionLog := postgres.NewSubmissionLog(pool)
	cartStorage := redisstore.NewCartStorage(redisClient, cfg.Cart.TTL)

	// Health probes.
	healthSvc := health.NewService()
	healthSvc.Register(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Register(health.Readiness, "redis", 2*time.Second, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthSvc.Register(health.Readiness, "catalog-feed", 5*time.Second,
		health.StalenessCheck(cfg.Catalog.MaxFeedAge, productRepo.LastFeedUpdate))
	healthSvc.Register(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Run(ctx, 10*time.Second)
	healthSvc.MarkReady()

	// Store backend client.
	backendClient := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	})

	// Domain services.
	catalogSvc := catalog.NewService(productRepo, cfg.Catalog.CacheTTL)
	carts := cart.NewStore(cartStorage)
	resolver := shipping.NewResolver(backendClient)
	machine := checkout.NewMachine(carts, resolver, backendClient, submissionLog, uuid.NewString)
	go machine.RunEviction(ctx, 10*time.Minute, cfg.Checkout.SessionTTL)

	// Cart pulse log, useful for tracing abandoned carts.
	go func() {
		pulses := carts.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-pulses:
				lg.Debug("Cart updated",
					zap.String("session_id", p.SessionID),
					zap.Int("total_items", p.TotalItems),
				)
			}
		}
	}()

	// HTTP surface.
	h := handler.NewHandler(catalogSvc, carts, machine)
	mux := http.NewServeMux()
	mux.Handle("/livez", healthSvc.Handler(health.Liveness))
	mux.Handle("/readyz", healthSvc.Handler(health.Readiness))
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.Session(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.MarkDraining()
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
