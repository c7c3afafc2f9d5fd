package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListAgreements(ctx context.Context, db *gorm.DB) ([]Agreement, error)
	FindAgreement(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Agreement, error)
	AgreementExists(ctx context.Context, db *gorm.DB, agreementType, version string) (bool, error)
	InsertAgreement(ctx context.Context, db *gorm.DB, agreement *Agreement) error

	ListSignatures(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) ([]Signature, error)
	FindSignature(ctx context.Context, db *gorm.DB, partnerID, agreementID snowflake.ID) (*Signature, error)
	InsertSignature(ctx context.Context, db *gorm.DB, signature *Signature) error

	FindRecord(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (*Record, error)
	FindRecordForUpdate(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (*Record, error)
	InsertRecord(ctx context.Context, db *gorm.DB, record *Record) error
	// UpdateRecord persists record guarded by its current version and
	// returns the rows affected.
	UpdateRecord(ctx context.Context, db *gorm.DB, record *Record) (int64, error)
}
