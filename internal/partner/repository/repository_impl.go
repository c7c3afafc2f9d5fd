package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/partner/domain"
	pkgdb "github.com/smallbiznis/partnerhub/pkg/db"
	"gorm.io/gorm"
)

const partnerColumns = `id, external_user_id, company_name, contact_email, phone, website,
	timezone, referral_code, status, commission_rate, version,
	created_at, updated_at, activated_at, suspended_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, partner *domain.Partner) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO partners (`+partnerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		partner.ID,
		partner.ExternalUserID,
		partner.CompanyName,
		partner.ContactEmail,
		partner.Phone,
		partner.Website,
		partner.Timezone,
		partner.ReferralCode,
		partner.Status,
		partner.CommissionRate,
		partner.Version,
		partner.CreatedAt,
		partner.UpdatedAt,
		partner.ActivatedAt,
		partner.SuspendedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Partner, error) {
	return findOne(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Partner, error) {
	return findOne(pkgdb.ForUpdate(db.WithContext(ctx)).Where("id = ?", id))
}

func (r *repo) FindByExternalUserID(ctx context.Context, db *gorm.DB, externalUserID string) (*domain.Partner, error) {
	return findOne(db.WithContext(ctx).Where("external_user_id = ?", strings.TrimSpace(externalUserID)))
}

func findOne(stmt *gorm.DB) (*domain.Partner, error) {
	var partner domain.Partner
	err := stmt.Model(&domain.Partner{}).Limit(1).Find(&partner).Error
	if err != nil {
		return nil, err
	}
	if partner.ID == 0 {
		return nil, nil
	}
	return &partner, nil
}

func (r *repo) ReferralCodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM partners WHERE referral_code = ?`,
		code,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) UpdateColumns(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, columns map[string]any) (int64, error) {
	updates := make(map[string]any, len(columns)+1)
	for column, value := range columns {
		updates[column] = value
	}
	updates["version"] = version + 1

	res := db.WithContext(ctx).
		Model(&domain.Partner{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) InsertApplication(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO partner_applications (
			id, external_user_id, company_name, contact_email, phone, website,
			message, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID,
		app.ExternalUserID,
		app.CompanyName,
		app.ContactEmail,
		app.Phone,
		app.Website,
		app.Message,
		app.Status,
		app.CreatedAt,
	).Error
}

func (r *repo) FindApplicationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Application, error) {
	return findApplication(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindApplicationForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Application, error) {
	return findApplication(pkgdb.ForUpdate(db.WithContext(ctx)).Where("id = ?", id))
}

func (r *repo) FindOpenApplication(ctx context.Context, db *gorm.DB, externalUserID string) (*domain.Application, error) {
	return findApplication(db.WithContext(ctx).
		Where("external_user_id = ? AND status = ?", externalUserID, domain.ApplicationSubmitted))
}

func findApplication(stmt *gorm.DB) (*domain.Application, error) {
	var app domain.Application
	if err := stmt.Model(&domain.Application{}).Limit(1).Find(&app).Error; err != nil {
		return nil, err
	}
	if app.ID == 0 {
		return nil, nil
	}
	return &app, nil
}

func (r *repo) ListApplications(ctx context.Context, db *gorm.DB, filter domain.ApplicationFilter) ([]*domain.Application, error) {
	var apps []*domain.Application
	stmt := db.WithContext(ctx).Model(&domain.Application{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *repo) UpdateApplication(ctx context.Context, db *gorm.DB, app *domain.Application) error {
	return db.WithContext(ctx).Exec(
		`UPDATE partner_applications
		SET status = ?, partner_id = ?, reviewed_by = ?, reviewed_at = ?, rejection_reason = ?
		WHERE id = ?`,
		app.Status,
		app.PartnerID,
		app.ReviewedBy,
		app.ReviewedAt,
		app.RejectionReason,
		app.ID,
	).Error
}
