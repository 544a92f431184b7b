package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Spok95/makerspace/internal/auth"
	"github.com/Spok95/makerspace/internal/catalog"
	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/config"
	"github.com/Spok95/makerspace/internal/docstore"
	"github.com/Spok95/makerspace/internal/domain/machines"
	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/usagelog"
	"github.com/Spok95/makerspace/internal/infra/blob"
	"github.com/Spok95/makerspace/internal/infra/db"
	"github.com/Spok95/makerspace/internal/infra/events"
	httpx "github.com/Spok95/makerspace/internal/infra/http"
	"github.com/Spok95/makerspace/internal/infra/logger"
	"github.com/Spok95/makerspace/internal/infra/metrics"
	"github.com/Spok95/makerspace/internal/infra/notify"
	"github.com/Spok95/makerspace/internal/infra/payments"
	"github.com/Spok95/makerspace/internal/infra/seed"
	"github.com/Spok95/makerspace/internal/pricing"
	"github.com/Spok95/makerspace/internal/session"
	"github.com/Spok95/makerspace/internal/usage"
)

func main() {
	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("makerspace stopped", "err", err)
		os.Exit(1)
	}
	log.Info("graceful shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (docstore.Store, func(), error) {
	retryCfg := docstore.RetryConfig{MaxAttempts: cfg.Store.MaxAttempts}

	if cfg.Store.Driver == "postgres" {
		if cfg.Postgres.MigrateOnBoot {
			if err := db.Migrate(ctx, cfg.Postgres.DSN); err != nil {
				return nil, nil, err
			}
			log.Info("migrations applied")
		}
		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info("db connected")
		return docstore.NewPostgres(pool, retryCfg), pool.Close, nil
	}

	log.Warn("using in-memory store, data is lost on restart")
	return docstore.NewMemory(retryCfg), func() {}, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Store.SeedFile != "" {
		f, err := seed.Load(cfg.Store.SeedFile)
		if err != nil {
			return err
		}
		n, err := seed.Apply(ctx, store, f)
		if err != nil {
			return err
		}
		log.Info("seed applied", "file", cfg.Store.SeedFile, "documents", n)
	}

	var (
		m          *metrics.Metrics
		metricsH   = promhttp.Handler()
		catalogObs catalog.Observer
		usageObs   usage.Observer
	)
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		catalogObs, usageObs = m, m
	} else {
		metricsH = nil
	}

	cache := catalog.New(materials.NewRepo(store), machines.NewRepo(store), log, catalogObs)
	if _, err := cache.Refresh(ctx); err != nil {
		// стартуем с пустым каталогом, следующий коммит или /api/catalog/refresh подтянет данные
		log.Error("initial catalog load failed", "err", err)
	}

	membership, err := pricing.FromMode(cfg.Membership.Mode)
	if err != nil {
		return err
	}

	var listeners []usage.Listener
	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = pub.Close() }()
		listeners = append(listeners, pub)
		log.Info("usage events enabled", "topic", cfg.Kafka.Topic)
	}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID)
		if err != nil {
			return err
		}
		listeners = append(listeners, tg)
		log.Info("low stock alerts enabled", "chat_id", cfg.Telegram.AdminChatID)
	}

	registry := clients.NewRegistry(func(s *session.State) *usage.Engine {
		return usage.NewEngine(usage.Deps{
			Catalog:    cache,
			Store:      store,
			Session:    s,
			Membership: membership,
			Log:        log,
			Timeout:    cfg.Commit.Timeout,
			Observer:   usageObs,
			Listeners:  listeners,
		})
	})
	go sweepClients(ctx, registry, cfg.Auth.ClientIdleTTL, log)

	var archive *blob.S3
	if cfg.Export.Bucket != "" {
		archive, err = blob.NewS3(ctx, blob.Config{
			Bucket:    cfg.Export.Bucket,
			Prefix:    cfg.Export.Prefix,
			Region:    cfg.Export.Region,
			Endpoint:  cfg.Export.Endpoint,
			PathStyle: cfg.Export.ForcePathStyle,
		})
		if err != nil {
			return err
		}
	}

	paySecret := cfg.Payments.Secret
	if paySecret == "" {
		paySecret = cfg.Auth.TokenSecret
	}

	deps := httpx.Deps{
		Log: log,
		Auth: auth.NewService(store, auth.Config{
			TokenSecret:     cfg.Auth.TokenSecret,
			TokenTTL:        cfg.Auth.TokenTTL,
			FederatedSecret: cfg.Auth.FederatedSecret,
			FederatedIssuer: cfg.Auth.FederatedIssuer,
		}),
		Clients:  registry,
		Catalog:  cache,
		UsageLog: usagelog.NewRepo(store),
		Payments: payments.NewService(cfg.Payments.BaseURL, paySecret, cfg.Payments.LinkTTL, cfg.Payments.Currency),
		Location: loc,
		Metrics:  metricsH,
	}
	if archive != nil {
		deps.Archive = archive
	}

	srv := httpx.New(cfg.HTTP.Addr, httpx.NewRouter(deps))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// sweepClients забывает клиентов, которые давно не обращались к API.
func sweepClients(ctx context.Context, r *clients.Registry, idle time.Duration, log *slog.Logger) {
	if idle <= 0 {
		return
	}
	t := time.NewTicker(idle / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(idle); n > 0 {
				log.Info("idle clients dropped", "count", n, "left", r.Len())
			}
		}
	}
}
