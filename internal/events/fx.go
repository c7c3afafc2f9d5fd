package events

import (
	"context"
	"time"

	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/ratelimit"
	"github.com/smallbiznis/partnerhub/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dispatcherLockKey = "partnerhub:events:dispatcher"

var Module = fx.Module("events",
	fx.Provide(NewOutbox),
	fx.Provide(telemetry.NewOutboxMetrics),
	fx.Provide(NewDispatcher),
)

// RunnerModule polls the outbox in the background for the lifetime of the app.
var RunnerModule = fx.Module("events.runner",
	fx.Invoke(runDispatcher),
)

// AsHandler tags a constructor so its result joins the dispatcher's handler group.
func AsHandler(f any) any {
	return fx.Annotate(f, fx.As(new(Handler)), fx.ResultTags(`group:"event_handlers"`))
}

func runDispatcher(lc fx.Lifecycle, cfg config.Config, d *Dispatcher, locker *ratelimit.Locker, log *zap.Logger) {
	d.WithBatchSize(cfg.Outbox.BatchSize)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Outbox.PollInterval)
				defer ticker.Stop()

				for {
					if _, err := locker.WithLock(ctx, dispatcherLockKey, cfg.Outbox.LockTTL, func(ctx context.Context) error {
						_, err := d.ProcessPending(ctx)
						return err
					}); err != nil && ctx.Err() == nil {
						log.Error("event dispatch poll failed", zap.Error(err))
					}

					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
