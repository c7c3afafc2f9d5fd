package providers

import (
	"github.com/smallbiznis/partnerhub/internal/providers/email"
	"github.com/smallbiznis/partnerhub/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
