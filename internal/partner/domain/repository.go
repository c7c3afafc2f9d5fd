package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ApplicationFilter struct {
	Status ApplicationStatus
	Cursor *ApplicationCursor
	Limit  int
}

type ApplicationCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, partner *Partner) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Partner, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Partner, error)
	FindByExternalUserID(ctx context.Context, db *gorm.DB, externalUserID string) (*Partner, error)
	ReferralCodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error)
	// UpdateColumns writes columns guarded by the expected version and bumps
	// it. It returns the number of rows affected.
	UpdateColumns(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, columns map[string]any) (int64, error)

	InsertApplication(ctx context.Context, db *gorm.DB, app *Application) error
	FindApplicationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Application, error)
	FindApplicationForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Application, error)
	FindOpenApplication(ctx context.Context, db *gorm.DB, externalUserID string) (*Application, error)
	ListApplications(ctx context.Context, db *gorm.DB, filter ApplicationFilter) ([]*Application, error)
	UpdateApplication(ctx context.Context, db *gorm.DB, app *Application) error
}
