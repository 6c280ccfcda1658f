package payment

import (
	"go.uber.org/fx"

	"github.com/opencampus/campuspay/internal/payment/gateway"
	"github.com/opencampus/campuspay/internal/payment/repository"
	"github.com/opencampus/campuspay/internal/payment/service"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		service.NewService,
		gateway.NewNormalizer,
	),
)
