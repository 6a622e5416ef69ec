package milling

import (
	"github.com/graindesk/millbook/internal/milling/service"
	"go.uber.org/fx"
)

var Module = fx.Module("milling.service",
	fx.Provide(service.NewService),
)
