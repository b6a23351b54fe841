package main

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/config"
	"github.com/example/media-platform/internal/platform/events"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/logging"
	"github.com/example/media-platform/internal/platform/natsconn"
	"github.com/example/media-platform/internal/platform/run"
	"github.com/example/media-platform/internal/recommend/candidate"
	"github.com/example/media-platform/internal/recommend/feed"
	"github.com/example/media-platform/internal/recommend/scoring"
	"github.com/example/media-platform/internal/settings"
	"github.com/example/media-platform/internal/userstate"
	"github.com/example/media-platform/services/discovery/internal/catalogcache"
	discoveryconfig "github.com/example/media-platform/services/discovery/internal/config"
	"github.com/example/media-platform/services/discovery/internal/handlers"
	discoveryhttp "github.com/example/media-platform/services/discovery/internal/http"
	"github.com/example/media-platform/services/discovery/internal/sources"
	"github.com/example/media-platform/services/discovery/internal/tmdb"
)

const (
	activityRetention  = 7 * 24 * time.Hour
	analyticsRetention = 30 * 24 * time.Hour
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

	dcfg, err := discoveryconfig.Load()
	if err != nil {
		log.Error("load discovery config", zap.Error(err))
		run.Exit(1)
	}
	ctx := context.Background()

	var units []run.Unit

	natsURL := dcfg.NATSURL
	if natsURL == "" && dcfg.NATSEmbedded {
		emb, err := natsconn.StartEmbedded(natsconn.EmbeddedOptions{Port: 4222, StoreDir: dcfg.NATSStoreDir})
		if err != nil {
			log.Error("start embedded nats", zap.Error(err))
			run.Exit(1)
		}
		natsURL = emb.ClientURL()
		log.Info("embedded nats started", zap.String("url", natsURL))
		units = append(units, run.Unit{
			Name:  "nats",
			Start: func(ctx context.Context) error { <-ctx.Done(); return nil },
			Stop:  emb.Shutdown,
		})
	}

	var (
		nc *nats.Conn
		js nats.JetStreamContext
	)
	if natsURL != "" {
		nc, err = natsconn.Connect(natsconn.Options{URL: natsURL, Name: cfg.ServiceName})
		if err != nil {
			log.Warn("nats unavailable; events disabled", zap.Error(err))
		} else {
			defer nc.Close()
			js, err = nc.JetStream()
			if err != nil {
				log.Error("jetstream", zap.Error(err))
				run.Exit(1)
			}
			if err := natsconn.EnsureStream(js, events.StreamActivity,
				[]string{events.SubjectInteraction, events.SubjectInteractionDLQ}, activityRetention); err != nil {
				log.Error("ensure activity stream", zap.Error(err))
				run.Exit(1)
			}
			if err := natsconn.EnsureStream(js, analytics.StreamAnalytics,
				[]string{analytics.SubjectsAnalytics}, analyticsRetention); err != nil {
				log.Error("ensure analytics stream", zap.Error(err))
				run.Exit(1)
			}
		}
	}

	breaker := tmdb.NewBreaker("tmdb", tmdb.BreakerSettings{
		MaxRequests:      dcfg.CBMaxRequests,
		Interval:         dcfg.CBInterval,
		Timeout:          dcfg.CBTimeout,
		FailureThreshold: dcfg.CBFailureThreshold,
	}, log)
	tmdbClient := tmdb.New(dcfg.TMDBBaseURL, tmdb.ClientConfig{
		APIKey:         dcfg.TMDBAPIKey,
		MaxRetries:     dcfg.MaxRetries,
		RetryBaseDelay: dcfg.RetryBaseDelay,
		Timeout:        dcfg.TMDBTimeout,
	}, tmdb.WithCircuitBreaker(breaker), tmdb.WithLogger(log))

	var catalog catalogcache.Catalog = tmdbClient
	if dcfg.RedisURL != "" {
		rc, err := catalogcache.NewRedisCache(dcfg.RedisURL, dcfg.CatalogCacheTTL)
		if err != nil {
			log.Warn("catalog cache unavailable; calling tmdb directly", zap.Error(err))
		} else {
			defer func() { _ = rc.Close() }()
			catalog = catalogcache.New(tmdbClient, rc, log)
		}
	}

	stateStore, err := userstate.NewStore(ctx, userstate.Config{
		Backend:     dcfg.UserStateBackend,
		RedisURL:    dcfg.RedisURL,
		DatabaseURL: dcfg.DatabaseURL,
		BadgerPath:  dcfg.BadgerPath,
		IsProd:      cfg.IsProd(),
	})
	if err != nil {
		log.Error("user state store", zap.Error(err))
		run.Exit(1)
	}
	defer func() { _ = stateStore.Close() }()
	tracker := userstate.NewTracker(stateStore, log)

	settingsStore, err := settings.NewStore(dcfg.RedisURL, cfg.IsProd())
	if err != nil {
		log.Error("settings store", zap.Error(err))
		run.Exit(1)
	}
	siteSettings := settings.NewService(settingsStore)

	agg := candidate.NewAggregator(catalog,
		candidate.WithCallTimeout(dcfg.FeedProviderTimeout),
		candidate.WithLogger(log))
	engine := scoring.NewEngine()
	composer := feed.NewComposer(agg, engine,
		feed.WithFeatured(siteSettings),
		feed.WithLogger(log))

	browse := handlers.NewTTLCache(dcfg.BrowseCacheTTL, nc, dcfg.CacheInvalidateSubj)
	defer func() { _ = browse.Close() }()

	var (
		publisher *analytics.Publisher
		eventsPub *handlers.EventPublisher
	)
	if js != nil {
		publisher = analytics.New(js, log)
		eventsPub = handlers.NewEventPublisher(js, dcfg.AsyncWrites)
	}

	limiter := discoveryhttp.NewRateLimiter(dcfg.RateLimitRPS, dcfg.RateLimitBurst)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := stateStore.Ping(c); err != nil {
				return err
			}
			if nc != nil && !nc.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		},
	})
	handlers.Mount(r, handlers.Deps{
		Verifier:  auth.JWTVerifier{Secret: dcfg.JWTSecret},
		States:    tracker,
		Composer:  composer,
		Cards:     engine,
		Catalog:   catalog,
		Browse:    browse,
		Settings:  siteSettings,
		Sources:   sources.NewResolver(siteSettings, log),
		Events:    eventsPub,
		Analytics: publisher,
		RateLimit: limiter.Middleware,
		Log:       log,
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	lis, err := net.Listen("tcp", dcfg.GRPCAddr)
	if err != nil {
		log.Error("listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcSrv)

	units = append(units,
		run.Unit{Name: "http", Start: srv.Start, Stop: srv.Shutdown},
		run.Unit{
			Name: "grpc",
			Start: func(context.Context) error {
				log.Info("grpc server starting", zap.String("addr", dcfg.GRPCAddr))
				return grpcSrv.Serve(lis)
			},
			Stop: func(ctx context.Context) error {
				healthSrv.Shutdown()
				stopped := make(chan struct{})
				go func() {
					grpcSrv.GracefulStop()
					close(stopped)
				}()
				select {
				case <-stopped:
				case <-ctx.Done():
					grpcSrv.Stop()
				}
				return nil
			},
		},
	)

	code := run.New(log).Units(units...)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
