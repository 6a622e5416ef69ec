package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	commodityrepo "github.com/graindesk/millbook/internal/commodity/repository"
	commoditysvc "github.com/graindesk/millbook/internal/commodity/service"
	dodomain "github.com/graindesk/millbook/internal/deliveryorder/domain"
	dorepo "github.com/graindesk/millbook/internal/deliveryorder/repository"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	ledgerrepo "github.com/graindesk/millbook/internal/ledger/repository"
	ledgersvc "github.com/graindesk/millbook/internal/ledger/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupDO(t *testing.T) (dodomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

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
		&dodomain.DeliveryOrder{},
	))
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_ledger_mill_source ON ledger_entries(mill_id, source_type, source_ref)",
	).Error)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	commoditySvc := commoditysvc.NewService(commoditysvc.Params{
		DB:   db,
		Log:  log,
		Repo: commodityrepo.Provide(),
	})
	for _, req := range []commoditydomain.RegisterCommodityRequest{
		{ID: "paddy-mota", Name: "Paddy Mota", Category: commoditydomain.CategoryPaddy, Unit: commoditydomain.UnitQuintal},
		{ID: "rice-usna", Name: "Rice Usna", Category: commoditydomain.CategoryRice, Unit: commoditydomain.UnitQuintal},
	} {
		_, err := commoditySvc.Register(context.Background(), req)
		require.NoError(t, err)
	}

	ledgerSvc := ledgersvc.NewService(ledgersvc.Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Repo:         ledgerrepo.Provide(),
		CommoditySvc: commoditySvc,
	})
	svc := NewService(Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Repo:         dorepo.Provide(),
		LedgerSvc:    ledgerSvc,
		CommoditySvc: commoditySvc,
	})
	return svc, db, node
}

func registerOrder(t *testing.T, svc dodomain.Service, millID snowflake.ID, doNumber, committed string) dodomain.DeliveryOrder {
	t.Helper()
	order, err := svc.Register(context.Background(), dodomain.RegisterRequest{
		MillID:            millID,
		DONumber:          doNumber,
		PartyRef:          "FCI-RAIPUR",
		CommodityID:       "rice-usna",
		Direction:         dodomain.DirectionOutward,
		CommittedQuantity: decimal.RequireFromString(committed),
		IssueDate:         time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return order
}

func lift(t *testing.T, svc dodomain.Service, millID snowflake.ID, doNumber, ref, qty string) dodomain.LiftResult {
	t.Helper()
	result, err := svc.RecordLift(context.Background(), dodomain.LiftRequest{
		MillID:    millID,
		DONumber:  doNumber,
		Quantity:  decimal.RequireFromString(qty),
		EntryDate: time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC),
		SourceRef: ref,
	})
	require.NoError(t, err)
	return result
}

func TestRemainingDerivedFromLifts(t *testing.T) {
	svc, _, node := setupDO(t)
	millID := node.Generate()
	registerOrder(t, svc, millID, "DO-2024-003", "1000")

	lift(t, svc, millID, "DO-2024-003", "GP-001", "400")
	result := lift(t, svc, millID, "DO-2024-003", "GP-002", "200")

	assert.True(t, result.Position.Lifted.Equal(decimal.RequireFromString("600")))
	assert.True(t, result.Position.Remaining.Equal(decimal.RequireFromString("400")))
	assert.False(t, result.Position.OverLifted)

	position, err := svc.Remaining(context.Background(), millID, "DO-2024-003")
	require.NoError(t, err)
	assert.True(t, position.Remaining.Equal(decimal.RequireFromString("400")))
}

func TestOverLiftIsFlaggedNotRejected(t *testing.T) {
	svc, db, node := setupDO(t)
	millID := node.Generate()
	registerOrder(t, svc, millID, "DO-2024-007", "100")

	lift(t, svc, millID, "DO-2024-007", "GP-010", "60")
	result := lift(t, svc, millID, "DO-2024-007", "GP-011", "60")

	assert.True(t, result.Position.Lifted.Equal(decimal.RequireFromString("120")))
	assert.True(t, result.Position.Remaining.Equal(decimal.RequireFromString("-20")))
	assert.True(t, result.Position.OverLifted)

	// Both movements are on the books.
	var count int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Where("mill_id = ? AND do_ref = ?", millID, "DO-2024-007").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestLiftRetrySameGatePass(t *testing.T) {
	svc, db, node := setupDO(t)
	millID := node.Generate()
	registerOrder(t, svc, millID, "DO-2024-010", "500")

	first := lift(t, svc, millID, "DO-2024-010", "GP-100", "75")
	second := lift(t, svc, millID, "DO-2024-010", "GP-100", "75")

	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.True(t, second.Position.Lifted.Equal(decimal.RequireFromString("75")))

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Where("mill_id = ?", millID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLiftEntryShape(t *testing.T) {
	svc, _, node := setupDO(t)
	millID := node.Generate()
	registerOrder(t, svc, millID, "DO-2024-020", "300")

	result := lift(t, svc, millID, "DO-2024-020", "GP-200", "50")

	assert.Equal(t, ledgerdomain.SourceTypeGateOutward, result.Entry.SourceType)
	assert.Equal(t, ledgerdomain.DirectionOut, result.Entry.Direction)
	assert.Equal(t, "rice-usna", result.Entry.CommodityID)
	assert.Equal(t, "DO-2024-020", result.Entry.DORef)
}

func TestDuplicateDONumberSameMill(t *testing.T) {
	svc, _, node := setupDO(t)
	millID := node.Generate()
	registerOrder(t, svc, millID, "DO-2024-001", "100")

	_, err := svc.Register(context.Background(), dodomain.RegisterRequest{
		MillID:            millID,
		DONumber:          "DO-2024-001",
		PartyRef:          "NAN-BILASPUR",
		CommodityID:       "rice-usna",
		Direction:         dodomain.DirectionOutward,
		CommittedQuantity: decimal.RequireFromString("50"),
		IssueDate:         time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, dodomain.ErrDuplicateDONumber)

	// The same number is fine for a different mill.
	registerOrder(t, svc, node.Generate(), "DO-2024-001", "100")
}

func TestLiftOnCancelledOrder(t *testing.T) {
	svc, _, node := setupDO(t)
	millID := node.Generate()
	registerOrder(t, svc, millID, "DO-2024-030", "200")

	cancelled, err := svc.Cancel(context.Background(), millID, "DO-2024-030")
	require.NoError(t, err)
	assert.Equal(t, dodomain.StatusCancelled, cancelled.Status)

	_, err = svc.RecordLift(context.Background(), dodomain.LiftRequest{
		MillID:    millID,
		DONumber:  "DO-2024-030",
		Quantity:  decimal.RequireFromString("10"),
		EntryDate: time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC),
		SourceRef: "GP-300",
	})
	assert.ErrorIs(t, err, dodomain.ErrDOCancelled)
}

func TestLiftUnknownOrder(t *testing.T) {
	svc, _, node := setupDO(t)
	_, err := svc.RecordLift(context.Background(), dodomain.LiftRequest{
		MillID:    node.Generate(),
		DONumber:  "DO-MISSING",
		Quantity:  decimal.RequireFromString("10"),
		EntryDate: time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC),
		SourceRef: "GP-400",
	})
	assert.ErrorIs(t, err, dodomain.ErrUnknownDO)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, node := setupDO(t)
	millID := node.Generate()
	base := dodomain.RegisterRequest{
		MillID:            millID,
		DONumber:          "DO-2024-040",
		PartyRef:          "FCI-RAIPUR",
		CommodityID:       "rice-usna",
		Direction:         dodomain.DirectionOutward,
		CommittedQuantity: decimal.RequireFromString("100"),
		IssueDate:         time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		name    string
		mutate  func(*dodomain.RegisterRequest)
		wantErr error
	}{
		{"blank number", func(r *dodomain.RegisterRequest) { r.DONumber = " " }, dodomain.ErrInvalidDONumber},
		{"blank party", func(r *dodomain.RegisterRequest) { r.PartyRef = "" }, dodomain.ErrInvalidPartyRef},
		{"bad direction", func(r *dodomain.RegisterRequest) { r.Direction = "upward" }, dodomain.ErrInvalidDirection},
		{"zero committed", func(r *dodomain.RegisterRequest) { r.CommittedQuantity = decimal.Zero }, dodomain.ErrInvalidCommitted},
		{"zero issue date", func(r *dodomain.RegisterRequest) { r.IssueDate = time.Time{} }, dodomain.ErrInvalidIssueDate},
		{"unknown commodity", func(r *dodomain.RegisterRequest) { r.CommodityID = "nope" }, commoditydomain.ErrUnknownCommodity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
