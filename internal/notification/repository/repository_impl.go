package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/notification/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_event_id"}},
			DoNothing: true,
		}).
		Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, partnerID, id snowflake.ID) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).
		Where("id = ? AND partner_id = ?", id, partnerID).
		Limit(1).
		Find(&n).Error
	if err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}

func (r *repo) FindBySourceEvent(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).
		Where("source_event_id = ?", eventID).
		Limit(1).
		Find(&n).Error
	if err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Notification, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("partner_id = ?", filter.PartnerID)
	if filter.UnreadOnly {
		stmt = stmt.Where(map[string]any{"read": false})
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("id < ?", filter.Cursor.ID)
	}

	var items []*domain.Notification
	err := stmt.Order("id desc").Limit(filter.Limit + 1).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("partner_id = ?", partnerID).
		Where(map[string]any{"read": false}).
		Count(&count).Error
	return count, err
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, partnerID, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND partner_id = ?", id, partnerID).
		Where(map[string]any{"read": false}).
		Updates(map[string]any{"read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *repo) MaxID(ctx context.Context, db *gorm.DB, partnerID snowflake.ID) (snowflake.ID, error) {
	var maxID *int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("partner_id = ?", partnerID).
		Select("MAX(id)").
		Scan(&maxID).Error
	if err != nil || maxID == nil {
		return 0, err
	}
	return snowflake.ID(*maxID), nil
}

// MarkReadUpTo only touches rows that existed when maxID was read, so
// notifications inserted during the sweep stay unread.
func (r *repo) MarkReadUpTo(ctx context.Context, db *gorm.DB, partnerID, maxID snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("partner_id = ? AND id <= ?", partnerID, maxID).
		Where(map[string]any{"read": false}).
		Updates(map[string]any{"read": true, "read_at": at})
	return res.RowsAffected, res.Error
}
