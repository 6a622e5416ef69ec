package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	balancerepo "github.com/graindesk/millbook/internal/balance/repository"
	balancesvc "github.com/graindesk/millbook/internal/balance/service"
	"github.com/graindesk/millbook/internal/clock"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	commodityrepo "github.com/graindesk/millbook/internal/commodity/repository"
	commoditysvc "github.com/graindesk/millbook/internal/commodity/service"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	ledgerrepo "github.com/graindesk/millbook/internal/ledger/repository"
	ledgersvc "github.com/graindesk/millbook/internal/ledger/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func TestCheckpointRunRebuildsEveryMill(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&commoditydomain.Commodity{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.MillSequence{},
		&balancedomain.BalanceCheckpoint{},
	))
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_ledger_mill_source ON ledger_entries(mill_id, source_type, source_ref)",
	).Error)

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fakeClock := clock.NewFakeClock(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	commoditySvc := commoditysvc.NewService(commoditysvc.Params{
		DB:   db,
		Log:  log,
		Repo: commodityrepo.Provide(),
	})
	_, err = commoditySvc.Register(context.Background(), commoditydomain.RegisterCommodityRequest{
		ID: "paddy-mota", Name: "Paddy Mota", Category: commoditydomain.CategoryPaddy, Unit: commoditydomain.UnitQuintal,
	})
	require.NoError(t, err)

	ledgerRepo := ledgerrepo.Provide()
	ledgerSvc := ledgersvc.NewService(ledgersvc.Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Repo:         ledgerRepo,
		CommoditySvc: commoditySvc,
	})
	balanceSvc := balancesvc.NewService(balancesvc.Params{
		DB:           db,
		Log:          log,
		Clock:        fakeClock,
		Repo:         balancerepo.Provide(),
		LedgerSvc:    ledgerSvc,
		CommoditySvc: commoditySvc,
	})

	millA := node.Generate()
	millB := node.Generate()
	for i, millID := range []snowflake.ID{millA, millB} {
		_, err := ledgerSvc.Append(context.Background(), ledgerdomain.EntryDraft{
			MillID:      millID,
			CommodityID: "paddy-mota",
			Direction:   ledgerdomain.DirectionIn,
			Quantity:    decimal.RequireFromString("100"),
			EntryDate:   time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
			SourceType:  ledgerdomain.SourceTypePurchase,
			SourceRef:   fmt.Sprintf("PUR-%d", i),
		})
		require.NoError(t, err)
	}

	job := &CheckpointJob{
		interval:   time.Hour,
		log:        log.Named("scheduler.checkpoint"),
		db:         db,
		clock:      fakeClock,
		ledgerRepo: ledgerRepo,
		balanceSvc: balanceSvc,
		done:       make(chan struct{}),
	}
	job.runOnce(context.Background())

	for _, millID := range []snowflake.ID{millA, millB} {
		var count int64
		require.NoError(t, db.Model(&balancedomain.BalanceCheckpoint{}).Where("mill_id = ?", millID).Count(&count).Error)
		assert.Greater(t, count, int64(0), "mill %s should have checkpoints", millID)
	}
}
