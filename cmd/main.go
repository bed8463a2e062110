package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/config"
	posgrpc "github.com/fjod/go_cart/pos-service/internal/grpc"
	h "github.com/fjod/go_cart/pos-service/internal/http"
	"github.com/fjod/go_cart/pos-service/internal/logger"
	"github.com/fjod/go_cart/pos-service/internal/pricing"
	"github.com/fjod/go_cart/pos-service/internal/publisher"
	"github.com/fjod/go_cart/pos-service/internal/repository"
	"github.com/fjod/go_cart/pos-service/internal/service"
	"github.com/fjod/go_cart/pos-service/internal/session"
	"github.com/fjod/go_cart/pos-service/internal/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(log)

	st, err := openStore(cfg)
	if err != nil {
		fatal(log, "failed to open store", err)
	}
	defer st.Close()

	sessions, err := openSessions(cfg, log)
	if err != nil {
		fatal(log, "failed to open session store", err)
	}

	engine := pricing.NewEngine(domain.NewCurrency(cfg.POS.Currency))
	manager := service.NewSessionManager(sessions, log)
	cartService := service.NewCartService(st, manager, engine, log)
	customerService := service.NewCustomerService(st, manager, log)
	catalogService := service.NewCatalogService(st, cfg.POS.PageSize)
	checkoutService := service.NewCheckoutService(st, manager, engine,
		service.ShopOwnerPolicy{DefaultSellerID: cfg.POS.DefaultSellerID}, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 {
		poller := publisher.NewOutboxPoller(st, log, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer poller.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
		log.Info("outbox poller started", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	} else {
		log.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	healthDeps := map[string]h.Pinger{"store": st, "sessions": sessions}
	router := h.NewRouter(h.RouterConfig{
		Cart:           h.NewCartHandler(cartService, customerService, log, cfg.App.RequestTimeout),
		Orders:         h.NewOrderHandler(checkoutService, log, cfg.App.RequestTimeout),
		Products:       h.NewProductHandler(catalogService, log, cfg.App.RequestTimeout),
		Health:         healthDeps,
		Log:            log,
		RequestTimeout: cfg.App.RequestTimeout,
		SessionTTL:     cfg.Redis.SessionTTL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "pos-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", "port", cfg.App.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "http server error", err)
		}
	}()

	healthServer := posgrpc.NewHealthServer(map[string]posgrpc.Pinger{"store": st, "sessions": sessions}, log)
	grpcServer := posgrpc.NewServer(healthServer)
	lis, err := net.Listen("tcp", ":"+cfg.App.GRPCPort)
	if err != nil {
		fatal(log, "failed to listen", err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		healthServer.Run(ctx, 15*time.Second)
	}()
	go func() {
		log.Info("gRPC server starting", "port", cfg.App.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			fatal(log, "grpc server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	healthServer.Shutdown()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	wg.Wait()

	log.Info("server exited")
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.App.StoreDriver == "memory" {
		st := store.NewMemoryStore()
		if cfg.App.MemorySeedPath == "" {
			return st, nil
		}
		f, err := os.Open(cfg.App.MemorySeedPath)
		if err != nil {
			return nil, fmt.Errorf("open seed: %w", err)
		}
		defer f.Close()
		if err := st.LoadSeed(f); err != nil {
			return nil, err
		}
		slog.Info("memory store seeded", "path", cfg.App.MemorySeedPath)
		return st, nil
	}

	cred := &repository.Credentials{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		DBName:            cfg.Database.DBName,
		MigrationsDirPath: cfg.Database.MigrationsPath,
	}
	repo, err := repository.NewRepository(cred)
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(cred); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

type sessionBackend interface {
	session.Store
	Ping(ctx context.Context) error
}

func openSessions(cfg *config.Config, log *slog.Logger) (sessionBackend, error) {
	if cfg.Redis.SessionBackend == "memory" {
		log.Warn("using in-process session store, carts are lost on restart")
		return session.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("connected to redis", "addr", cfg.Redis.Addr)
	return session.NewRedisStore(client, cfg.Redis.SessionTTL), nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
