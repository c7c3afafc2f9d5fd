package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	LeadCreated   = "lead_created"
	LeadContacted = "lead_contacted"
	LeadQualified = "lead_qualified"
	LeadConverted = "lead_converted"
	LeadLost      = "lead_lost"

	ApplicationApproved = "application_approved"
	AgreementSigned     = "agreement_signed"
	PaymentSetupStarted = "payment_setup_started"
	AccountApproved     = "account_approved"

	PartnerSuspended      = "partner_suspended"
	PartnerReinstated     = "partner_reinstated"
	CommissionRateChanged = "commission_rate_changed"
	CommissionPaid        = "commission_paid"
)

// Event is a domain event row in the partner_events outbox.
type Event struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	PartnerID     snowflake.ID      `gorm:"not null;index" json:"partner_id"`
	EventType     string            `gorm:"type:text;not null" json:"event_type"`
	Payload       datatypes.JSONMap `json:"payload"`
	CorrelationID string            `gorm:"type:text" json:"correlation_id"`
	DedupeKey     *string           `gorm:"type:text;uniqueIndex" json:"-"`
	Published     bool              `gorm:"not null;default:false" json:"published"`
	PublishedAt   *time.Time        `json:"published_at,omitempty"`
	Attempts      int               `gorm:"not null;default:0" json:"attempts"`
	LastError     *string           `gorm:"type:text" json:"-"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string { return "partner_events" }

// String returns a payload value as a string, empty when missing.
func (e Event) String(key string) string {
	if e.Payload == nil {
		return ""
	}
	value, ok := e.Payload[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

// Handler consumes dispatched events. Handlers must tolerate redelivery.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event Event) error
}
