package partner

import (
	"github.com/smallbiznis/partnerhub/internal/partner/repository"
	"github.com/smallbiznis/partnerhub/internal/partner/service"
	"go.uber.org/fx"
)

var Module = fx.Module("partner.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
