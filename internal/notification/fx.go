package notification

import (
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/notification/live"
	"github.com/smallbiznis/partnerhub/internal/notification/repository"
	"github.com/smallbiznis/partnerhub/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(live.NewHub),
	fx.Provide(service.New),
	fx.Provide(events.AsHandler(service.NewEventHandler)),
)
