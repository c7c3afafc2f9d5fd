package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/notification/domain"
	"github.com/smallbiznis/partnerhub/internal/notification/live"
	"github.com/smallbiznis/partnerhub/internal/observability/metrics"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"github.com/smallbiznis/partnerhub/internal/providers/email"
	"github.com/smallbiznis/partnerhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxTypeLength  = 64
	maxTitleLength = 200
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Partners partnerdomain.Repository
	Program  *config.ProgramHolder `optional:"true"`
	Hub      *live.Hub             `optional:"true"`
	Email    email.Provider        `optional:"true"`
	Metrics  *metrics.Metrics      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	partners partnerdomain.Repository
	program  *config.ProgramHolder
	hub      *live.Hub
	email    email.Provider
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("notification.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		partners: p.Partners,
		program:  p.Program,
		hub:      p.Hub,
		email:    p.Email,
		metrics:  p.Metrics,
	}
}

// Emit stores the notification and then fans it out. Re-emitting the same
// source event returns the stored row without delivering it again.
func (s *Service) Emit(ctx context.Context, req domain.EmitRequest) (*domain.Notification, error) {
	n, err := s.build(req)
	if err != nil {
		return nil, err
	}

	partner, err := s.partners.FindByID(ctx, s.db, req.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, partnerdomain.ErrPartnerNotFound
	}

	inserted, err := s.repo.Insert(ctx, s.db, n)
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := s.repo.FindBySourceEvent(ctx, s.db, *req.SourceEventID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrNotFound
		}
		return existing, nil
	}

	s.hub.Publish(*n)
	s.metrics.RecordNotification(ctx, n.Type)
	s.deliverEmail(ctx, partner, n)
	return n, nil
}

func (s *Service) List(ctx context.Context, partnerID snowflake.ID, req domain.ListNotificationsRequest) (domain.ListNotificationsResponse, error) {
	if partnerID == 0 {
		return domain.ListNotificationsResponse{}, domain.ErrInvalidID
	}

	filter := domain.ListFilter{PartnerID: partnerID, UnreadOnly: req.UnreadOnly, Limit: req.Size()}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListNotificationsResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListNotificationsResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.Cursor{ID: id}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListNotificationsResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, filter.Limit, func(n *domain.Notification) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: n.ID.String()})
		return token
	})

	out := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListNotificationsResponse{PageInfo: pageInfo, Notifications: out}, nil
}

func (s *Service) UnreadCount(ctx context.Context, partnerID snowflake.ID) (int64, error) {
	if partnerID == 0 {
		return 0, domain.ErrInvalidID
	}
	return s.repo.CountUnread(ctx, s.db, partnerID)
}

// MarkRead is idempotent: an already read notification keeps its read_at.
func (s *Service) MarkRead(ctx context.Context, partnerID, notificationID snowflake.ID) (*domain.Notification, error) {
	if partnerID == 0 || notificationID == 0 {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.repo.MarkRead(ctx, s.db, partnerID, notificationID, s.clock.Now()); err != nil {
		return nil, err
	}
	n, err := s.repo.FindByID(ctx, s.db, partnerID, notificationID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, partnerID snowflake.ID) (int64, error) {
	if partnerID == 0 {
		return 0, domain.ErrInvalidID
	}
	snapshot, err := s.repo.MaxID(ctx, s.db, partnerID)
	if err != nil {
		return 0, err
	}
	if snapshot == 0 {
		return 0, nil
	}
	affected, err := s.repo.MarkReadUpTo(ctx, s.db, partnerID, snapshot, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.log.Debug("notifications marked read",
		zap.String("partner_id", partnerID.String()),
		zap.Int64("affected", affected),
	)
	return affected, nil
}

func (s *Service) build(req domain.EmitRequest) (*domain.Notification, error) {
	if req.PartnerID == 0 {
		return nil, domain.ErrInvalidID
	}
	notificationType := strings.TrimSpace(req.Type)
	if notificationType == "" || len(notificationType) > maxTypeLength {
		return nil, domain.ErrInvalidType
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, domain.ErrInvalidTitle
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.ErrInvalidMessage
	}

	return &domain.Notification{
		ID:            s.genID.Generate(),
		PartnerID:     req.PartnerID,
		Type:          notificationType,
		Title:         title,
		Message:       message,
		Data:          req.Data,
		SourceEventID: req.SourceEventID,
		CreatedAt:     s.clock.Now(),
	}, nil
}

func (s *Service) deliverEmail(ctx context.Context, partner *partnerdomain.Partner, n *domain.Notification) {
	if s.email == nil || partner.ContactEmail == "" {
		return
	}
	if !slices.Contains(s.program.Get().Notifications.EmailTypes, n.Type) {
		return
	}

	html, err := email.Render("notification", map[string]string{
		"Title":       n.Title,
		"Message":     n.Message,
		"CompanyName": partner.CompanyName,
	})
	if err != nil {
		s.log.Warn("render notification email failed", zap.Error(err))
		return
	}
	err = s.email.Send(ctx, email.Message{
		To:       []string{partner.ContactEmail},
		Subject:  n.Title,
		TextBody: n.Message,
		HTMLBody: html,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("send notification email failed",
			zap.String("partner_id", partner.ID.String()),
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
	}
}
