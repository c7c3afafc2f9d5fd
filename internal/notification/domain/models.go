package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TypeNote is a free-form notification a partner posts to their own feed.
const TypeNote = "note"

// Notification is created once and afterwards only marked read.
type Notification struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	PartnerID     snowflake.ID      `gorm:"not null;index:idx_notifications_partner,priority:1" json:"partnerId"`
	Type          string            `gorm:"type:text;not null" json:"type"`
	Title         string            `gorm:"type:text;not null" json:"title"`
	Message       string            `gorm:"type:text;not null" json:"message"`
	Data          datatypes.JSONMap `json:"data,omitempty"`
	SourceEventID *snowflake.ID     `gorm:"uniqueIndex" json:"-"`
	Read          bool              `gorm:"not null;default:false;index:idx_notifications_partner,priority:2" json:"read"`
	ReadAt        *time.Time        `json:"readAt,omitempty"`
	CreatedAt     time.Time         `gorm:"not null" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }

type Cursor struct {
	ID snowflake.ID
}
