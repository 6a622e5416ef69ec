package commodity

import (
	"github.com/graindesk/millbook/internal/commodity/repository"
	"github.com/graindesk/millbook/internal/commodity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commodity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
