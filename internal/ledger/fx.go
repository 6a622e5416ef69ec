package ledger

import (
	"github.com/graindesk/millbook/internal/ledger/repository"
	"github.com/graindesk/millbook/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
