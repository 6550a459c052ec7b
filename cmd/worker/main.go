package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/caseflow/webhook-outbox/config"
	"github.com/caseflow/webhook-outbox/dispatch"
	"github.com/caseflow/webhook-outbox/event"
	"github.com/caseflow/webhook-outbox/logger"
	webhookredis "github.com/caseflow/webhook-outbox/webhook/redis"
	"go.uber.org/zap"
)

/* worker - Standalone delivery processor.
 * Runs the queue drain on a ticker without serving the admin API. Deploy
 * it alongside the api binary to scale delivery throughput horizontally;
 * the claim lease keeps concurrent workers from double-sending.
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

	sender := dispatch.NewSender()
	notifier := dispatch.NewLogNotifier(log)
	processor := dispatch.NewProcessor(repo, sender, notifier, source, log, dispatch.ProcessorOptions{
		BatchSize: cfg.BatchSize,
		Lease:     cfg.Lease(),
		Retention: cfg.Retention(),
	})

	log.Info("worker started",
		zap.Duration("interval", cfg.Interval()),
		zap.Int("batch_size", cfg.BatchSize))

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping")
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
