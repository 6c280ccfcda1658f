package reconcile

import (
	"go.uber.org/fx"

	"github.com/opencampus/campuspay/internal/reconcile/service"
)

var Module = fx.Module("reconcile",
	fx.Provide(service.NewService),
)
