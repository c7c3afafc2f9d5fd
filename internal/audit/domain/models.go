package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeAdmin   ActorType = "admin"
	ActorTypePartner ActorType = "partner"
	ActorTypeSystem  ActorType = "system"
)

const (
	ActionApplicationApprove = "application.approve"
	ActionApplicationReject  = "application.reject"
	ActionPartnerSuspend     = "partner.suspend"
	ActionPartnerReinstate   = "partner.reinstate"
	ActionCommissionRate     = "partner.commission_rate.update"
	ActionCommissionPaid     = "lead.commission_paid"
	ActionAgreementPublish   = "agreement.publish"
	ActionAuthorizationDeny  = "authorization.denied"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
