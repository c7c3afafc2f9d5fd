package service

import (
	"context"
	"errors"

	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/onboarding/domain"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"go.uber.org/zap"
)

// ApprovalHandler opens the onboarding record once an application is approved.
type ApprovalHandler struct {
	svc domain.Service
	log *zap.Logger
}

func NewApprovalHandler(svc domain.Service, log *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{svc: svc, log: log.Named("onboarding.handler")}
}

func (h *ApprovalHandler) Name() string { return "onboarding.start" }

func (h *ApprovalHandler) Handle(ctx context.Context, event events.Event) error {
	if event.EventType != events.ApplicationApproved {
		return nil
	}
	if _, err := h.svc.Start(ctx, event.PartnerID); err != nil {
		if errors.Is(err, partnerdomain.ErrPartnerNotFound) {
			h.log.Warn("approved partner missing", zap.String("partner_id", event.PartnerID.String()))
			return nil
		}
		return err
	}
	return nil
}
