package migration

import (
	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	"github.com/graindesk/millbook/internal/config"
	dodomain "github.com/graindesk/millbook/internal/deliveryorder/domain"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations are written for postgres; other dialects
		// (sqlite for local runs, mysql) fall back to schema sync from the
		// models.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&commoditydomain.Commodity{},
				&ledgerdomain.LedgerEntry{},
				&ledgerdomain.MillSequence{},
				&balancedomain.BalanceCheckpoint{},
				&dodomain.DeliveryOrder{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
