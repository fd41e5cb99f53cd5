package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-voucher-seckill.git/internal/kafka"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/config"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/orders"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/postgres"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/queue"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/seckill"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logrus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka egress: order-created events after durable creation
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	prod.Start(ctx)

	creator := &orders.Creator{
		Store:    &orders.Repo{DB: db},
		Redis:    rdb,
		Producer: prod,
		Service:  cfg.ServiceName + "-worker",
		Log:      log,
	}

	q := queue.New(rdb, cfg.OrderStream, cfg.OrderGroup, cfg.OrderConsumer)
	cons := seckill.NewConsumer(q, creator, log)

	go func() {
		log.Infof("order consumer started: stream=%s group=%s consumer=%s",
			cfg.OrderStream, cfg.OrderGroup, cfg.OrderConsumer)
		if err := cons.Start(ctx); err != nil {
			log.Errorf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer...")
	cancel()
	select {
	case <-cons.Done():
	case <-time.After(5 * time.Second):
	}
	prod.Close()
	prod.WaitClosed()
}
