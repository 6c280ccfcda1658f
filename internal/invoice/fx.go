package invoice

import (
	"go.uber.org/fx"

	"github.com/opencampus/campuspay/internal/invoice/repository"
	"github.com/opencampus/campuspay/internal/invoice/service"
)

var Module = fx.Module("invoice",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
