package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/prato-delivery/internal/domain/coupon"
	"github.com/xenking/prato-delivery/internal/domain/order"
	"github.com/xenking/prato-delivery/internal/handler"
	"github.com/xenking/prato-delivery/internal/notify"
	"github.com/xenking/prato-delivery/internal/payment/pix"
	"github.com/xenking/prato-delivery/internal/storage/file"
	"github.com/xenking/prato-delivery/internal/storage/postgres"
	"github.com/xenking/prato-delivery/internal/ws"
	"github.com/xenking/prato-delivery/pkg/health"
	"github.com/xenking/prato-delivery/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	deliveryFee, err := decimal.NewFromString(cfg.Delivery.Fee)
	if err != nil {
		return errors.Wrap(err, "parse delivery fee")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Order store with the configured snapshot backend.
	var snap order.Snapshotter
	switch cfg.Snapshot.Backend {
	case "file":
		snap, err = file.NewSnapshotStore(cfg.Snapshot.Path)
		if err != nil {
			return errors.Wrap(err, "open snapshot file")
		}
	default:
		snap = postgres.NewOrderSnapshotStore(pool)
	}
	store := order.NewStore(snap, lg)
	if err := store.Hydrate(ctx); err != nil {
		return errors.Wrap(err, "hydrate order store")
	}

	// Flush doubles as the snapshot write probe: it fails when the backend
	// stops accepting writes, and keeps the mirror fresh as a side effect.
	healthSvc.AddReadinessCheck("snapshot", 5*time.Second, store.Flush)
	healthSvc.Start(ctx, 10*time.Second)

	// Live feed + status event stream, fed by store subscriptions.
	g, gctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(lg)
	g.Go(func() error {
		if err := hub.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	defer store.Subscribe(hub.Publish)()

	if len(cfg.Kafka.Brokers) > 0 {
		notifier := notify.New(lg, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		g.Go(func() error {
			if err := notifier.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		defer store.Subscribe(notifier.OnSnapshot)()
	}

	// HTTP surface.
	h := handler.New(
		handler.Config{
			ImageBaseURL:  cfg.ImageBaseURL,
			DeliveryFee:   deliveryFee,
			EstimatedTime: cfg.Delivery.EstimatedTime,
		},
		store,
		productRepo,
		coupon.NewRepoValidator(couponRepo),
		pix.Builder{
			Key:          cfg.PIX.Key,
			MerchantName: cfg.PIX.MerchantName,
			MerchantCity: cfg.PIX.MerchantCity,
		},
	)
	authn := handler.APIKeyAuth(apikeyRepo, []byte(cfg.APIKeyPepper))

	apiRouter := mux.NewRouter().PathPrefix("/api").Subrouter()
	h.Register(apiRouter)

	root := http.NewServeMux()
	root.HandleFunc("/livez", healthSvc.LiveEndpoint)
	root.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	// Exact path wins over the /api/ prefix, so the feed never reaches the
	// /orders/{id} handler.
	root.Handle("/api/orders/ws", authn(http.HandlerFunc(hub.Handle)))
	root.Handle("/api/", authn(apiRouter))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(root,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("prato-api", m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

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

		// Last durable write; per-mutation saves are best effort.
		if err := store.Flush(shutdownCtx); err != nil {
			lg.Error("Final snapshot flush failed", zap.Error(err))
		}

		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return g.Wait()
}
