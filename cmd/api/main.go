package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/canteen-reservations/internal/config"
	"github.com/ariefcatur/canteen-reservations/internal/docstore"
	"github.com/ariefcatur/canteen-reservations/internal/httpx"
	kafkax "github.com/ariefcatur/canteen-reservations/internal/kafka"
	"github.com/ariefcatur/canteen-reservations/internal/logging"
	"github.com/ariefcatur/canteen-reservations/internal/metrics"
	"github.com/ariefcatur/canteen-reservations/internal/postgres"
	"github.com/ariefcatur/canteen-reservations/internal/redisx"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	mreg := metrics.NewRegistry()
	opts := []reservation.Option{reservation.WithLogger(log), reservation.WithMetrics(mreg)}

	// Kafka (optional): without brokers events only go to the log.
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.ReservationTopic, 1024, log)
		prod.Start(ctx)
		opts = append(opts, reservation.WithNotifier(kafkax.NewNotifier(prod, cfg.ServiceName)))
	}
	engine := reservation.NewEngine(store, opts...)

	h := &httpx.ReservationsHandler{Engine: engine, Log: log}

	// Redis (optional): idempotency keys and status cache.
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn("redis unreachable, continuing without it", "addr", cfg.RedisAddr, "err", err)
		} else {
			h.Idem = redisx.NewIdempotency(rdb)
			h.Cache = redisx.NewStatusCache(rdb)
		}
	}

	router := httpx.NewRouter(log, mreg.Handler())
	h.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "kafka", prod != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (reservation.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		s := postgres.NewStore(db)
		if cfg.SeedFile != "" {
			d, err := docstore.ReadDataset(cfg.SeedFile)
			if err == nil {
				err = s.Seed(ctx, d.Menu, d.Users)
			}
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			log.Info("seeded", "file", cfg.SeedFile)
		}
		return s, db.Close, nil

	case "pebble", "memory":
		var (
			s   *docstore.Store
			err error
		)
		if cfg.StoreDriver == "pebble" {
			s, err = docstore.OpenPebble(cfg.PebbleDir)
			if err != nil {
				return nil, nil, err
			}
		} else {
			s = docstore.NewMemory()
		}
		if cfg.SeedFile != "" {
			if err := s.SeedFile(ctx, cfg.SeedFile); err != nil {
				_ = s.Close()
				return nil, nil, err
			}
			log.Info("seeded", "file", cfg.SeedFile)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error("store close", "err", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
