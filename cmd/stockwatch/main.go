package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-ledger/internal/config"
	"github.com/ariefcatur/go-order-ledger/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-ledger/internal/kafka"
	"github.com/ariefcatur/go-order-ledger/internal/logging"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
	"github.com/ariefcatur/go-order-ledger/internal/redisx"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	w := &inventory.Watcher{
		Queue: &redisx.ReorderQueue{RDB: rdb, Service: cfg.ServiceName + "-stockwatch"},
		Log:   logger.Named("stockwatch"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StockwatchGroup, orders.TopicStockChanged,
		cfg.StockwatchWorkers, logger.Named("kafka"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("stock watcher started",
			zap.String("group", cfg.StockwatchGroup),
			zap.String("topic", orders.TopicStockChanged),
			zap.Int("workers", cfg.StockwatchWorkers))
		if err := cons.Start(ctx, w.HandleStockChanged); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
