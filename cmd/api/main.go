package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/caseflow/webhook-outbox/config"
	"github.com/caseflow/webhook-outbox/dispatch"
	"github.com/caseflow/webhook-outbox/event"
	httpchi "github.com/caseflow/webhook-outbox/internal/http/chi"
	"github.com/caseflow/webhook-outbox/logger"
	"github.com/caseflow/webhook-outbox/metrics"
	"github.com/caseflow/webhook-outbox/seeds"
	"github.com/caseflow/webhook-outbox/webhook"
	webhookredis "github.com/caseflow/webhook-outbox/webhook/redis"
	"go.uber.org/zap"
)

const TIMEOUT = 30 * time.Second

/*
 * main wires the packages together in one direction only: the binary
 * imports the business layer, which imports the storage layer. It starts
 * the admin API plus an in-process ticker that drains the delivery queue,
 * so a single-binary deployment needs no external cron.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := webhookredis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Error("connecting to redis", zap.Error(err))
		return
	}
	defer repo.Close(ctx)

	source := event.Source{
		Application: cfg.AppName,
		Version:     cfg.AppVersion,
		Environment: cfg.AppEnvironment,
	}

	registry := webhook.NewService(repo)
	sender := dispatch.NewSender()
	notifier := dispatch.NewLogNotifier(log)
	processor := dispatch.NewProcessor(repo, sender, notifier, source, log, dispatch.ProcessorOptions{
		BatchSize: cfg.BatchSize,
		Lease:     cfg.Lease(),
		Retention: cfg.Retention(),
	})
	dispatcher := dispatch.NewDispatcher(repo, processor, source, log, cfg.SyncLowWaterMark)

	if cfg.SeedsFile != "" {
		loader := seeds.NewLoader()
		if err := loader.Load(cfg.SeedsFile); err != nil {
			log.Error("loading seeds", zap.Error(err))
			return
		}
		created, err := loader.Apply(ctx, registry)
		if err != nil {
			log.Error("applying seeds", zap.Error(err))
			return
		}
		log.Info("seeds applied", zap.Int("created", created))
	}

	collector := metrics.NewRedisCollector(repo.GetClient())
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		log.Error("creating metrics exporter", zap.Error(err))
		return
	}
	defer exporter.Shutdown(ctx)

	// Background queue drain; the POST /v1/queue/process endpoint stays
	// available for deployments that prefer an external trigger.
	go runProcessor(ctx, processor, cfg.Interval(), log)

	r := httpchi.Handlers(ctx, registry, dispatcher, processor, exporter.ServeHTTP())
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)

	log.Info("listening", zap.String("port", cfg.Port))
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Error("server error", zap.Error(err))
		return
	}
	if err := <-errShutdown; err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

func runProcessor(ctx context.Context, processor *dispatch.Processor, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := processor.ProcessQueue(ctx)
			if err != nil {
				log.Error("processing queue", zap.Error(err))
				continue
			}
			if processed > 0 {
				log.Info("queue processed", zap.Int("attempted", processed))
			}
		}
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	default:
		errShutdown <- fmt.Errorf("forcing server close: %w", err)
	}
}
