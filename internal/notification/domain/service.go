package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/pkg/db/pagination"
)

type EmitRequest struct {
	PartnerID     snowflake.ID   `json:"-"`
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data"`
	SourceEventID *snowflake.ID  `json:"-"`
}

type ListNotificationsRequest struct {
	pagination.Pagination
	UnreadOnly bool `form:"unread_only"`
}

type ListNotificationsResponse struct {
	pagination.PageInfo
	Notifications []Notification `json:"notifications"`
}

type Service interface {
	Emit(ctx context.Context, req EmitRequest) (*Notification, error)
	List(ctx context.Context, partnerID snowflake.ID, req ListNotificationsRequest) (ListNotificationsResponse, error)
	UnreadCount(ctx context.Context, partnerID snowflake.ID) (int64, error)
	MarkRead(ctx context.Context, partnerID, notificationID snowflake.ID) (*Notification, error)
	MarkAllRead(ctx context.Context, partnerID snowflake.ID) (int64, error)
}

var (
	ErrNotFound         = errors.New("notification_not_found")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidType      = errors.New("invalid_type")
	ErrInvalidTitle     = errors.New("invalid_title")
	ErrInvalidMessage   = errors.New("invalid_message")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
