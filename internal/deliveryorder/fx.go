package deliveryorder

import (
	"github.com/graindesk/millbook/internal/deliveryorder/repository"
	"github.com/graindesk/millbook/internal/deliveryorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deliveryorder.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
