package enrollment

import (
	"go.uber.org/fx"

	"github.com/opencampus/campuspay/internal/enrollment/repository"
	"github.com/opencampus/campuspay/internal/enrollment/service"
)

var Module = fx.Module("enrollment",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
