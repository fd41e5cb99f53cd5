package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/cache"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/config"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/httpx"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/idgen"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/orders"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/postgres"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/seckill"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/shop"
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
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Core services
	repo := &orders.Repo{DB: db}
	cc := cache.New(rdb, log)
	svc := seckill.NewService(repo, seckill.NewGate(rdb, cfg.OrderStream), idgen.New(rdb), cc, log)
	shops := shop.NewService(&shop.Repo{DB: db}, cc, log)

	// Router & handlers
	router := httpx.NewRouter()
	(&httpx.SeckillHandler{Service: svc, Orders: repo}).Register(router)
	(&httpx.ShopHandler{Shops: shops}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Infof("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	cc.Wait() // let in-flight cache rebuilds finish
}
