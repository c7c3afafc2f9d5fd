package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	PartnerID snowflake.ID
	Status    Status
	Cursor    *Cursor
	Limit     int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, lead *Lead) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Lead, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Lead, error)
	// ListAll returns every lead of a partner for aggregation.
	ListAll(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) ([]Lead, error)
	// Update writes the mutable lead fields if the row still has
	// expectedVersion, and returns the rows affected.
	Update(ctx context.Context, db *gorm.DB, lead *Lead, expectedVersion int64) (int64, error)
}
