package events

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/observability/metrics"
	"github.com/smallbiznis/partnerhub/pkg/telemetry"
	"github.com/smallbiznis/partnerhub/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultBatchSize = 100
	// MaxAttempts bounds redelivery of a poison event; past it the event is
	// parked as published with its last error so the partner's stream moves on.
	MaxAttempts = 10
)

type DispatcherParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Handlers []Handler               `group:"event_handlers"`
	Metrics  *metrics.Metrics        `optional:"true"`
	Outbox   *telemetry.OutboxMetrics `optional:"true"`
}

// Dispatcher delivers unpublished events to every handler in id order.
type Dispatcher struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	handlers  []Handler
	metrics   *metrics.Metrics
	outbox    *telemetry.OutboxMetrics
	batchSize int
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	return &Dispatcher{
		db:        p.DB,
		log:       p.Log.Named("events.dispatcher"),
		clock:     p.Clock,
		handlers:  p.Handlers,
		metrics:   p.Metrics,
		outbox:    p.Outbox,
		batchSize: DefaultBatchSize,
	}
}

func (d *Dispatcher) WithBatchSize(size int) *Dispatcher {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

type BatchResult struct {
	Published int
	Failed    int
	Deferred  int
}

// ProcessPending runs one dispatch pass. Once an event of a partner fails,
// that partner's later events in the batch are deferred so per-partner
// order is never broken.
func (d *Dispatcher) ProcessPending(ctx context.Context) (BatchResult, error) {
	start := time.Now()
	var result BatchResult

	var pending []Event
	if err := d.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id ASC").
		Limit(d.batchSize).
		Find(&pending).Error; err != nil {
		d.outbox.ObserveBatch("error", 0, time.Since(start))
		return result, err
	}

	blocked := map[snowflake.ID]struct{}{}
	for _, event := range pending {
		if _, ok := blocked[event.PartnerID]; ok {
			result.Deferred++
			continue
		}

		if err := d.deliver(ctx, event); err != nil {
			result.Failed++
			blocked[event.PartnerID] = struct{}{}
			if recErr := d.recordFailure(ctx, event, err); recErr != nil {
				return result, recErr
			}
			continue
		}

		if err := d.markPublished(ctx, event.ID, nil); err != nil {
			return result, err
		}
		result.Published++
	}

	status := "ok"
	if result.Failed > 0 {
		status = "partial"
	}
	d.outbox.ObserveBatch(status, len(pending)-result.Published, time.Since(start))
	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) error {
	ctx = correlation.ContextWithCorrelationID(ctx, event.CorrelationID)
	ctx = correlation.ContextWithRemoteSpan(ctx, event.String("trace_id"), event.String("span_id"))

	for _, h := range d.handlers {
		if err := h.Handle(ctx, event); err != nil {
			d.metrics.RecordEventDispatch(ctx, event.EventType, err)
			d.outbox.HandlerError(event.EventType)
			return fmt.Errorf("%s: %w", h.Name(), err)
		}
	}
	d.metrics.RecordEventDispatch(ctx, event.EventType, nil)
	return nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, event Event, cause error) error {
	attempts := event.Attempts + 1
	msg := cause.Error()

	d.log.Warn("event delivery failed",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.EventType),
		zap.String("partner_id", event.PartnerID.String()),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)

	if attempts >= MaxAttempts {
		d.log.Error("event parked after max attempts",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", event.EventType),
		)
		if err := d.db.WithContext(ctx).Model(&Event{}).
			Where("id = ?", event.ID).
			Update("attempts", attempts).Error; err != nil {
			return err
		}
		return d.markPublished(ctx, event.ID, &msg)
	}

	return d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"attempts":   attempts,
			"last_error": msg,
		}).Error
}

func (d *Dispatcher) markPublished(ctx context.Context, id snowflake.ID, lastError *string) error {
	now := d.clock.Now()
	updates := map[string]any{
		"published":    true,
		"published_at": now,
	}
	if lastError != nil {
		updates["last_error"] = *lastError
	}
	return d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND published = ?", id, false).
		Updates(updates).Error
}
