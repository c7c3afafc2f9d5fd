package onboarding

import (
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/onboarding/repository"
	"github.com/smallbiznis/partnerhub/internal/onboarding/service"
	"go.uber.org/fx"
)

var Module = fx.Module("onboarding.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(events.AsHandler(service.NewApprovalHandler)),
)
