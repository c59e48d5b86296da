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

	"github.com/ariefcatur/canteen-reservations/internal/config"
	"github.com/ariefcatur/canteen-reservations/internal/httpx"
	"github.com/ariefcatur/canteen-reservations/internal/inbox"
	kafkax "github.com/ariefcatur/canteen-reservations/internal/kafka"
	"github.com/ariefcatur/canteen-reservations/internal/logging"
	"github.com/ariefcatur/canteen-reservations/internal/metrics"
	"github.com/ariefcatur/canteen-reservations/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-notifier"
	log := logging.New(cfg.LogLevel).With("service", service)
	slog.SetDefault(log)

	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		log.Error("notifier needs KAFKA_BROKERS and REDIS_ADDR")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Error("redis", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}

	mreg := metrics.NewRegistry()
	svc := &inbox.Service{
		Store:   inbox.NewRedisStore(rdb, service, cfg.InboxLimit),
		Metrics: mreg,
		Log:     log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.ReservationTopic, cfg.NotifierWorkers, log)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		log.Info("consumer started", "group", cfg.NotifierGroup, "topic", cfg.ReservationTopic, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.HandleReservationEvent); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// Inbox reads
	router := httpx.NewRouter(log, mreg.Handler())
	(&httpx.InboxHandler{Inbox: svc, Log: log}).Register(router)
	srv := &http.Server{Addr: cfg.NotifierHTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", "addr", cfg.NotifierHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
	<-consumerDone
}
