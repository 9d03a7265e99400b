package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cafehub/go-coffee-pos/internal/catalog"
	"github.com/cafehub/go-coffee-pos/internal/config"
	"github.com/cafehub/go-coffee-pos/internal/httpx"
	"github.com/cafehub/go-coffee-pos/internal/inventory"
	kafkax "github.com/cafehub/go-coffee-pos/internal/kafka"
	"github.com/cafehub/go-coffee-pos/internal/orders"
	"github.com/cafehub/go-coffee-pos/internal/postgres"
	"github.com/cafehub/go-coffee-pos/internal/redisx"
	"github.com/cafehub/go-coffee-pos/internal/stats"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.MigrationsPath, cfg.PostgresDSN); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	pCreated.Start(ctx)
	pChanged := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, logger)
	pChanged.Start(ctx)

	// Engine & handlers
	store := &orders.PGStore{
		DB:     db,
		Log:    logger,
		Strict: cfg.CheckoutGuard == config.GuardStrict,
	}
	engine := &orders.Engine{
		Store:   store,
		Redis:   rdb,
		Created: pCreated,
		Changed: pChanged,
		Log:     logger,
		Service: cfg.ServiceName,
	}
	ledger := &inventory.Repo{DB: db}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Engine: engine, Log: logger}).Register(router)
	(&httpx.InventoryHandler{Ledger: ledger, Log: logger}).Register(router)
	(&httpx.CatalogHandler{Catalog: &catalog.Repo{DB: db}, Ledger: ledger, Log: logger}).Register(router)
	(&httpx.StatsHandler{Stats: &stats.Repo{DB: db}, Ledger: ledger, Engine: engine, Log: logger}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close() // close inbox -> flush & close writer
	pChanged.Close()
	cancel() // stop producer loops
	pCreated.WaitClosed()
	pChanged.WaitClosed()
}
