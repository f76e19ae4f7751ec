package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/config"
	"github.com/mmynk/grouporder/internal/gateway"
	"github.com/mmynk/grouporder/internal/livesync"
	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/middleware"
	"github.com/mmynk/grouporder/internal/orders"
	"github.com/mmynk/grouporder/internal/record"
	"github.com/mmynk/grouporder/internal/service"
	"github.com/mmynk/grouporder/internal/storage"
	"github.com/mmynk/grouporder/internal/storage/redisstore"
	"github.com/mmynk/grouporder/internal/storage/sqlite"
	"github.com/mmynk/grouporder/pkg/api/apiconnect"
	"github.com/mmynk/grouporder/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	locale, err := cfg.Locale()
	if err != nil {
		return err
	}

	catalog, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer catalog.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	// Order documents share the SQLite database unless Redis is configured.
	var documents storage.DocumentStore = catalog
	if cfg.RedisURL != "" {
		rs, err := redisstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rs.Close()
		documents = rs
		slog.Info("Using Redis document store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	summaryOpts := []calculator.Option{calculator.WithLocale(locale)}
	gw := gateway.New(documents, gateway.WithMetrics(m))
	normalizer := record.NewNormalizer(catalog, nil)
	repo := orders.NewRepository(gw, normalizer, nil)
	controller := livesync.NewController(gw, normalizer,
		livesync.WithMetrics(m),
		livesync.WithSummaryOptions(summaryOpts...),
	)
	orderSvc := service.NewOrderService(repo, controller, catalog,
		service.WithDebounce(cfg.DebounceWindow),
		service.WithMetrics(m),
		service.WithSummaryOptions(summaryOpts...),
	)
	catalogSvc := service.NewCatalogService(catalog, locale, nil)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()

	// Register Connect services
	orderPath, orderHandler := apiconnect.NewOrderServiceHandler(orderSvc, interceptors)
	mux.Handle(orderPath, orderHandler)

	catalogPath, catalogHandler := apiconnect.NewCatalogServiceHandler(catalogSvc, interceptors)
	mux.Handle(catalogPath, catalogHandler)

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.Addr, "debounce", cfg.DebounceWindow)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Open streams never end on their own; flush and end them first.
	orderSvc.Shutdown(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
