package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/lead/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, lead *domain.Lead) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO leads (
			id, partner_id, client_name, client_email, client_phone, service,
			service_value, commission, commission_rate, status, commission_paid,
			notes, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID,
		lead.PartnerID,
		lead.ClientName,
		lead.ClientEmail,
		lead.ClientPhone,
		lead.Service,
		lead.ServiceValue,
		lead.Commission,
		lead.CommissionRate,
		lead.Status,
		lead.CommissionPaid,
		lead.Notes,
		lead.Version,
		lead.CreatedAt,
		lead.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Lead, error) {
	var lead domain.Lead
	err := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ?", id).
		Limit(1).
		Find(&lead).Error
	if err != nil {
		return nil, err
	}
	if lead.ID == 0 {
		return nil, nil
	}
	return &lead, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Lead, error) {
	var leads []*domain.Lead
	stmt := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("partner_id = ?", filter.PartnerID)

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
	if err := stmt.Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) ([]domain.Lead, error) {
	var leads []domain.Lead
	err := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("partner_id = ?", partnerID).
		Order("created_at asc, id asc").
		Find(&leads).Error
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, lead *domain.Lead, expectedVersion int64) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE leads
		SET status = ?, commission = ?, commission_paid = ?, commission_paid_at = ?,
			converted_at = ?, lost_at = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		lead.Status,
		lead.Commission,
		lead.CommissionPaid,
		lead.CommissionPaidAt,
		lead.ConvertedAt,
		lead.LostAt,
		lead.UpdatedAt,
		expectedVersion+1,
		lead.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
