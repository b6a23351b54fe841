package main

import (
	"errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformconfig "github.com/example/media-platform/internal/platform/config"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/logging"
	"github.com/example/media-platform/internal/platform/natsconn"
	"github.com/example/media-platform/internal/platform/run"
	"github.com/example/media-platform/services/analytics/internal/config"
	"github.com/example/media-platform/services/analytics/internal/consumer"
	"github.com/example/media-platform/services/analytics/internal/handler"
	"github.com/example/media-platform/services/analytics/internal/posthog"
)

func main() {
	app, err := platformconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.NewForEnv(app.LogLevel, app.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	httpserver.SetPanicLogger(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load analytics config", zap.Error(err))
		run.Exit(1)
	}

	ph, err := posthog.New(posthog.Options{
		APIKey:        cfg.PostHogAPIKey,
		Host:          cfg.PostHogHost,
		FlushInterval: cfg.FlushInterval,
		BatchSize:     cfg.PostHogBatchSize,
	}, log)
	if err != nil {
		log.Error("posthog init", zap.Error(err))
		run.Exit(1)
	}
	defer func() {
		if err := ph.Close(); err != nil {
			log.Warn("posthog close", zap.Error(err))
		}
	}()

	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: app.ServiceName})
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

	c, err := consumer.New(js, handler.New(ph, log), cfg.NATSBatchSize, cfg.FetchWait, log)
	if err != nil {
		log.Error("consumer init", zap.Error(err))
		run.Exit(1)
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			if !nc.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		},
	})
	srv := httpserver.New(httpserver.Options{Addr: app.HTTP.Addr, ServiceName: app.ServiceName, Logger: log, Router: r})

	code := run.New(log).Units(
		run.Unit{Name: "http", Start: srv.Start, Stop: srv.Shutdown},
		run.Unit{Name: "analytics-consumer", Start: c.Run},
	)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
