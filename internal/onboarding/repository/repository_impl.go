package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/onboarding/domain"
	pkgdb "github.com/smallbiznis/partnerhub/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListAgreements(ctx context.Context, db *gorm.DB) ([]domain.Agreement, error) {
	var agreements []domain.Agreement
	err := db.WithContext(ctx).
		Model(&domain.Agreement{}).
		Order("type asc, created_at asc, id asc").
		Find(&agreements).Error
	if err != nil {
		return nil, err
	}
	return agreements, nil
}

func (r *repo) FindAgreement(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Agreement, error) {
	var agreement domain.Agreement
	err := db.WithContext(ctx).Raw(
		`SELECT id, type, version, title, content, is_required, created_at
		FROM agreements WHERE id = ?`,
		id,
	).Scan(&agreement).Error
	if err != nil {
		return nil, err
	}
	if agreement.ID == 0 {
		return nil, nil
	}
	return &agreement, nil
}

func (r *repo) AgreementExists(ctx context.Context, db *gorm.DB, agreementType, version string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM agreements WHERE type = ? AND version = ?`,
		agreementType, version,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertAgreement(ctx context.Context, db *gorm.DB, agreement *domain.Agreement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO agreements (id, type, version, title, content, is_required, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		agreement.ID,
		agreement.Type,
		agreement.Version,
		agreement.Title,
		agreement.Content,
		agreement.IsRequired,
		agreement.CreatedAt,
	).Error
}

func (r *repo) ListSignatures(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) ([]domain.Signature, error) {
	var signatures []domain.Signature
	err := db.WithContext(ctx).
		Model(&domain.Signature{}).
		Where("partner_id = ?", partnerID).
		Order("signed_at asc, id asc").
		Find(&signatures).Error
	if err != nil {
		return nil, err
	}
	return signatures, nil
}

func (r *repo) FindSignature(ctx context.Context, db *gorm.DB, partnerID, agreementID snowflake.ID) (*domain.Signature, error) {
	var signature domain.Signature
	err := db.WithContext(ctx).
		Model(&domain.Signature{}).
		Where("partner_id = ? AND agreement_id = ?", partnerID, agreementID).
		Limit(1).
		Find(&signature).Error
	if err != nil {
		return nil, err
	}
	if signature.ID == 0 {
		return nil, nil
	}
	return &signature, nil
}

func (r *repo) InsertSignature(ctx context.Context, db *gorm.DB, signature *domain.Signature) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO agreement_signatures (
			id, partner_id, agreement_id, signature_text, signed_at, ip_address, user_agent
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		signature.ID,
		signature.PartnerID,
		signature.AgreementID,
		signature.SignatureText,
		signature.SignedAt,
		signature.IPAddress,
		signature.UserAgent,
	).Error
}

func (r *repo) FindRecord(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (*domain.Record, error) {
	return findRecord(db.WithContext(ctx), partnerID)
}

func (r *repo) FindRecordForUpdate(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (*domain.Record, error) {
	return findRecord(pkgdb.ForUpdate(db.WithContext(ctx)), partnerID)
}

func findRecord(stmt *gorm.DB, partnerID snowflake.ID) (*domain.Record, error) {
	var record domain.Record
	err := stmt.Model(&domain.Record{}).
		Where("partner_id = ?", partnerID).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.PartnerID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) InsertRecord(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO partner_onboarding (
			partner_id, phase, payment_requested_at, payment_confirmed_at, activated_at,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.PartnerID,
		record.Phase,
		record.PaymentRequestedAt,
		record.PaymentConfirmedAt,
		record.ActivatedAt,
		record.Version,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) UpdateRecord(ctx context.Context, db *gorm.DB, record *domain.Record) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE partner_onboarding
		SET phase = ?, payment_requested_at = ?, payment_confirmed_at = ?, activated_at = ?,
			version = version + 1, updated_at = ?
		WHERE partner_id = ? AND version = ?`,
		record.Phase,
		record.PaymentRequestedAt,
		record.PaymentConfirmedAt,
		record.ActivatedAt,
		record.UpdatedAt,
		record.PartnerID,
		record.Version,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
