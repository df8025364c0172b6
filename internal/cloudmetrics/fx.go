package cloudmetrics

import (
	"context"
	"io"
	"time"

	"github.com/smallbiznis/planix/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPushInterval = 5 * time.Minute

var Module = fx.Module("cloud.metrics",
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, pusher Pusher, db *gorm.DB, logger *zap.Logger) *CloudMetrics {
		if pusher == nil {
			return nil
		}
		return New(db, pusher, cfg.InstanceID, cfg.AppVersion, logger)
	}),
	fx.Invoke(startWorker),
)

func startWorker(lc fx.Lifecycle, cfg config.Config, c *CloudMetrics, logger *zap.Logger) {
	if c == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Cloud.Metrics.Interval
	if interval <= 0 {
		interval = defaultPushInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting cloud metrics worker", zap.Duration("interval", interval))
			go func() {
				defer close(done)
				c.run(ctx, interval)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			if closer, ok := c.pusher.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	})
}

func (c *CloudMetrics) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failures errorOnce
	pushOnce := func() {
		pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
		defer cancel()
		failures.report(c.log, c.Push(pushCtx))
	}

	pushOnce()
	for {
		select {
		case <-ticker.C:
			pushOnce()
		case <-ctx.Done():
			c.log.Info("stopping cloud metrics worker")
			return
		}
	}
}
