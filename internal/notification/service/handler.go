package service

import (
	"context"

	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/notification/domain"
)

// EventHandler turns dispatched domain events into partner notifications.
type EventHandler struct {
	svc domain.Service
}

func NewEventHandler(svc domain.Service) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) Name() string { return "notification.emitter" }

func (h *EventHandler) Handle(ctx context.Context, event events.Event) error {
	req, ok := domain.FromEvent(event)
	if !ok {
		return nil
	}
	_, err := h.svc.Emit(ctx, req)
	return err
}
