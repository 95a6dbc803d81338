package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
	"github.com/ariefcatur/go-order-ledger/internal/config"
	"github.com/ariefcatur/go-order-ledger/internal/httpx"
	"github.com/ariefcatur/go-order-ledger/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-ledger/internal/kafka"
	"github.com/ariefcatur/go-order-ledger/internal/logging"
	"github.com/ariefcatur/go-order-ledger/internal/memstore"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
	"github.com/ariefcatur/go-order-ledger/internal/postgres"
	"github.com/ariefcatur/go-order-ledger/internal/redisx"
	"github.com/ariefcatur/go-order-ledger/internal/service"
	"github.com/ariefcatur/go-order-ledger/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}

	// Store
	var store orders.Store
	switch cfg.Store {
	case "memory":
		ms := memstore.New()
		ms.SeedDemo()
		store = ms
		logger.Warn("running on the in-memory store with demo data")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				logger.Fatal("db migrate", zap.Error(err))
			}
		}
		store = &postgres.Store{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger.Named("kafka"))
	prod.Start(ctx)

	svc := &service.OrderService{
		Store:     store,
		Ledger:    inventory.NewLedger(),
		Audit:     audit.NewRecorder(),
		Publisher: prod,
		Log:       logger.Named("orders"),
		Pricing: service.Pricing{
			TaxRate:          cfg.TaxRate,
			ShippingFee:      cfg.ShippingFee,
			FreeShippingOver: cfg.FreeShippingOver,
		},
		ServiceName:         cfg.ServiceName,
		TxTimeout:           cfg.TxTimeout,
		OrderNumberAttempts: cfg.OrderNumberAttempts,
	}

	router := httpx.NewRouter(logger.Named("http"))
	oh := &httpx.OrdersHandler{
		Svc:   svc,
		Idem:  &redisx.Idempotency{RDB: rdb, PendingTTL: cfg.TxTimeout + 10*time.Second},
		Cache: &redisx.OrderCache{RDB: rdb},
		Log:   logger.Named("http"),
	}
	oh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox, flush, close writer
	prod.WaitClosed()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
