package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowmart/cart-session/internal/api/handlers"
	"github.com/glowmart/cart-session/internal/api/middleware"
	"github.com/glowmart/cart-session/internal/bus"
	"github.com/glowmart/cart-session/internal/cache"
	"github.com/glowmart/cart-session/internal/config"
	"github.com/glowmart/cart-session/internal/gateway"
	"github.com/glowmart/cart-session/internal/health"
	"github.com/glowmart/cart-session/internal/limiter"
	"github.com/glowmart/cart-session/internal/metrics"
	service "github.com/glowmart/cart-session/internal/services"
	"github.com/glowmart/cart-session/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Tracing setup
	shutdownTracing, err := telemetry.Setup(rootCtx, &cfg.Telemetry)
	if err != nil {
		slog.Error("❌ Error setting up tracing", "error", err.Error())
		os.Exit(1)
	}

	// Redis setup
	redisClient, err := newRedisClient(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", "error", err.Error())
		os.Exit(1)
	}

	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Error("⚠️ Error closing redis connection", slog.String("error", err.Error()))
		}
	}()

	// Upstream gateways
	upstreamClient := gateway.NewClient(&cfg.Upstream)
	redisCache := cache.NewRedisCache(redisClient, &cfg.CacheConfig)
	cartGateway := gateway.NewCartGateway(upstreamClient)
	catalogGateway := gateway.NewCatalogGateway(upstreamClient, redisCache, cfg.CacheConfig.ProductTTL, logger)
	voucherGateway := gateway.NewVoucherGateway(upstreamClient, redisCache, cfg.CacheConfig.VoucherTTL, logger)

	// Cart session machinery
	invalidationBus := bus.NewRedisBus(redisClient, logger)
	stockResolver := service.NewStockResolver(catalogGateway, cfg.Session.MaxConcurrent, logger)
	registry := service.NewSessionRegistry(cartGateway, stockResolver, invalidationBus, middleware.TokenFromContext, cfg.Session.IdleTTL, logger)
	registry.Start(rootCtx)

	mutationLimiter := limiter.NewMutationLimiter(redisClient, &cfg.RateConfig)

	cartHandler := handlers.NewCartHandler(registry, mutationLimiter)
	voucherHandler := handlers.NewVoucherHandler(registry, voucherGateway)
	authMiddleware := middleware.NewAuthMiddleware([]byte(cfg.Security.JWTKey))

	healthHandler, err := health.NewHealthHandler(cfg)
	if err != nil {
		slog.Error("❌ Error creating health handler", "error", err.Error())
		os.Exit(1)
	}

	slog.Info("cart session service initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("GET /api/v1/cart", authMiddleware.AuthenticateOptional(cartHandler.GetCart()))
	routerMux.HandleFunc("POST /api/v1/cart/lines/{id}/step", authMiddleware.Authenticate(cartHandler.StepQuantity()))
	routerMux.HandleFunc("PUT /api/v1/cart/lines/{id}/quantity", authMiddleware.Authenticate(cartHandler.CommitQuantity()))
	routerMux.HandleFunc("DELETE /api/v1/cart/lines/{id}", authMiddleware.Authenticate(cartHandler.RemoveLine()))
	routerMux.HandleFunc("PUT /api/v1/cart/selection", authMiddleware.Authenticate(cartHandler.UpdateSelection()))
	routerMux.HandleFunc("POST /api/v1/cart/voucher", authMiddleware.Authenticate(voucherHandler.ApplyVoucher()))
	routerMux.HandleFunc("DELETE /api/v1/cart/voucher", authMiddleware.Authenticate(voucherHandler.ClearVoucher()))
	routerMux.HandleFunc("GET /api/v1/cart/voucher-suggestions", authMiddleware.AuthenticateOptional(voucherHandler.Suggestions()))
	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "cart-session")

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("❌ Failed to start server", slog.Any("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	registry.Close()
	rootCancel()
	invalidationBus.Close()

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Tracer shutdown encountered an issue", slog.String("error", err.Error()))
	}
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {

	opt, err := redis.ParseURL(cfg.RedisConnect.GetDSN())
	if err != nil {
		return nil, err
	}

	opt.DB = cfg.RedisConnect.DB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	slog.Info("✅ Successfully connected to Redis")

	return client, nil
}
