package address

import (
	"github.com/opencampus/campuspay/internal/address/service"
	"go.uber.org/fx"
)

var Module = fx.Module("address.service",
	fx.Provide(service.NewService),
)
