package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hardback/bookstore/internal/domain/auth"
	"github.com/hardback/bookstore/internal/domain/cart"
	"github.com/hardback/bookstore/internal/domain/coupon"
	"github.com/hardback/bookstore/internal/domain/order"
	"github.com/hardback/bookstore/internal/events"
	"github.com/hardback/bookstore/internal/handler"
	"github.com/hardback/bookstore/internal/payment"
	"github.com/hardback/bookstore/internal/repository"
	"github.com/hardback/bookstore/pkg/health"
	"github.com/hardback/bookstore/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	bookRepo := repository.NewBookRepository(pool)
	wishlistRepo := repository.NewWishlistRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Order event publisher: AMQP when configured, otherwise a no-op.
	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQP(cfg.AMQPURL)
		if err != nil {
			return errors.Wrap(err, "connect amqp")
		}
		defer func() { _ = amqpPub.Close() }()
		publisher = amqpPub
	}

	// Payment providers: COD is always available, the card gateway only
	// when configured.
	providers := []payment.Provider{payment.CODProvider{}}
	var gateway *payment.Gateway
	if cfg.Payment.GatewayURL != "" {
		gateway = payment.NewGateway(payment.GatewayConfig{
			BaseURL:       cfg.Payment.GatewayURL,
			APIKey:        cfg.Payment.GatewayKey,
			WebhookSecret: cfg.Payment.WebhookSecret,
		})
		providers = append(providers, gateway)
	}
	paymentRouter := payment.NewRouter(providers...)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	cartService := cart.NewService(cartRepo, bookRepo)
	orderService := order.NewService(cartRepo, bookRepo, couponValidator, orderRepo, paymentRouter, publisher, lg)
	authService := auth.NewService(userRepo, sessionRepo, apikeyRepo, []byte(cfg.APIKeyPepper))

	// Background sweep of expired sessions.
	go sweepSessions(ctx, lg, sessionRepo)

	// HTTP handlers.
	h := handler.NewHandler(bookRepo, wishlistRepo, couponRepo, cartService, orderService, authService, gateway)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

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
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Api-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("bookstore-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
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

// sweepSessions deletes expired sessions hourly until ctx is cancelled.
func sweepSessions(ctx context.Context, lg *zap.Logger, sessions auth.SessionRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx, time.Now())
			if err != nil {
				lg.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("expired sessions deleted", zap.Int64("count", n))
			}
		}
	}
}
