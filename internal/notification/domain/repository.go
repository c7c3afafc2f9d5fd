package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	PartnerID  snowflake.ID
	UnreadOnly bool
	Cursor     *Cursor
	Limit      int
}

type Repository interface {
	// Insert reports false when a notification for the same source event exists.
	Insert(ctx context.Context, db *gorm.DB, n *Notification) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, partnerID, id snowflake.ID) (*Notification, error)
	FindBySourceEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (*Notification, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Notification, error)
	CountUnread(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (int64, error)
	MarkRead(ctx context.Context, db *gorm.DB, partnerID, id snowflake.ID, at time.Time) (int64, error)
	MaxID(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (snowflake.ID, error)
	MarkReadUpTo(ctx context.Context, db *gorm.DB, partnerID, maxID snowflake.ID, at time.Time) (int64, error)
}
