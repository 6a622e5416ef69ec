package balance

import (
	"github.com/graindesk/millbook/internal/balance/repository"
	"github.com/graindesk/millbook/internal/balance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("balance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
