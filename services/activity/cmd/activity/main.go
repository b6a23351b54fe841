package main

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/config"
	"github.com/example/media-platform/internal/platform/events"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/logging"
	"github.com/example/media-platform/internal/platform/natsconn"
	"github.com/example/media-platform/internal/platform/run"
	"github.com/example/media-platform/internal/userstate"
	activityconfig "github.com/example/media-platform/services/activity/internal/config"
	"github.com/example/media-platform/services/activity/internal/idempotency"
	"github.com/example/media-platform/services/activity/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.NewForEnv(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	httpserver.SetPanicLogger(log)

	acfg := activityconfig.Load()
	ctx := context.Background()

	nc, err := natsconn.Connect(natsconn.Options{URL: acfg.NATSURL, Name: cfg.ServiceName})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		run.Exit(1)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		log.Error("jetstream", zap.Error(err))
		run.Exit(1)
	}
	if err := natsconn.EnsureStream(js, events.StreamActivity,
		[]string{events.SubjectInteraction, events.SubjectInteractionDLQ}, 7*24*time.Hour); err != nil {
		log.Error("ensure activity stream", zap.Error(err))
		run.Exit(1)
	}

	store, err := userstate.NewStore(ctx, userstate.Config{
		Backend:     acfg.UserStateBackend,
		RedisURL:    acfg.RedisURL,
		DatabaseURL: acfg.DatabaseURL,
		BadgerPath:  acfg.BadgerPath,
		IsProd:      cfg.IsProd(),
	})
	if err != nil {
		log.Error("user state store", zap.Error(err))
		run.Exit(1)
	}
	defer func() { _ = store.Close() }()

	seen, err := idempotency.NewStore(ctx, acfg.RedisURL, acfg.DatabaseURL, acfg.IdempotencyTTL, cfg.IsProd())
	if err != nil {
		log.Error("idempotency store", zap.Error(err))
		run.Exit(1)
	}
	defer func() { _ = seen.Close() }()

	consumer := worker.NewConsumer(log, js, userstate.NewTracker(store, log), seen)
	consumer.BatchSize = acfg.BatchSize
	consumer.FetchWait = acfg.FetchWait
	consumer.MaxDeliver = acfg.MaxDeliver

	// HTTP only serves probes and metrics.
	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			if !nc.IsConnected() {
				return errors.New("nats disconnected")
			}
			c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(c)
		},
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	code := run.New(log).Units(
		run.Unit{Name: "http", Start: srv.Start, Stop: srv.Shutdown},
		run.Unit{Name: "interaction-consumer", Start: consumer.Run},
	)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
