package events

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/pkg/telemetry/correlation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidEvent = errors.New("invalid_event")

// Outbox appends events inside the caller's transaction so an event exists
// if and only if the state change that produced it committed.
type Outbox struct {
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(genID *snowflake.Node, clk clock.Clock) *Outbox {
	return &Outbox{genID: genID, clock: clk}
}

type Draft struct {
	PartnerID snowflake.ID
	EventType string
	Payload   map[string]any
	DedupeKey string
}

func (o *Outbox) Append(ctx context.Context, tx *gorm.DB, draft Draft) (*Event, error) {
	if draft.PartnerID == 0 || strings.TrimSpace(draft.EventType) == "" {
		return nil, ErrInvalidEvent
	}

	_, cid := correlation.EnsureCorrelationID(ctx)
	payload := datatypes.JSONMap{}
	for key, value := range draft.Payload {
		payload[key] = value
	}
	if meta := correlation.TraceMetadata(ctx); meta != nil {
		payload["trace_id"] = meta["trace_id"]
		payload["span_id"] = meta["span_id"]
	}

	event := &Event{
		ID:            o.genID.Generate(),
		PartnerID:     draft.PartnerID,
		EventType:     draft.EventType,
		Payload:       payload,
		CorrelationID: cid,
		CreatedAt:     o.clock.Now(),
	}
	if key := strings.TrimSpace(draft.DedupeKey); key != "" {
		event.DedupeKey = &key
	}

	if err := tx.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}
