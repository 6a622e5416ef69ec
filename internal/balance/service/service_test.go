package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	balancerepo "github.com/graindesk/millbook/internal/balance/repository"
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
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db           *gorm.DB
	node         *snowflake.Node
	clock        *clock.FakeClock
	log          *zap.Logger
	commoditySvc commoditydomain.Service
	ledgerSvc    ledgerdomain.Service
	balanceSvc   balancedomain.Service
}

func setupBalance(t *testing.T, now time.Time) *fixture {
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
	))
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_ledger_mill_source ON ledger_entries(mill_id, source_type, source_ref)",
	).Error)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fakeClock := clock.NewFakeClock(now)

	commoditySvc := commoditysvc.NewService(commoditysvc.Params{
		DB:   db,
		Log:  log,
		Repo: commodityrepo.Provide(),
	})
	for _, req := range []commoditydomain.RegisterCommodityRequest{
		{ID: "paddy-mota", Name: "Paddy Mota", Category: commoditydomain.CategoryPaddy, Unit: commoditydomain.UnitQuintal},
		{ID: "rice-arwa", Name: "Rice Arwa", Category: commoditydomain.CategoryRice, Unit: commoditydomain.UnitQuintal},
		{ID: "khanda", Name: "Khanda", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
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
	balanceSvc := NewService(Params{
		DB:           db,
		Log:          log,
		Clock:        fakeClock,
		Repo:         balancerepo.Provide(),
		LedgerSvc:    ledgerSvc,
		CommoditySvc: commoditySvc,
	})

	return &fixture{
		db:           db,
		node:         node,
		clock:        fakeClock,
		log:          log,
		commoditySvc: commoditySvc,
		ledgerSvc:    ledgerSvc,
		balanceSvc:   balanceSvc,
	}
}

func (f *fixture) append(t *testing.T, millID snowflake.ID, commodityID string, dir ledgerdomain.Direction, sourceType ledgerdomain.SourceType, ref, qty string, date time.Time) {
	t.Helper()
	_, err := f.ledgerSvc.Append(context.Background(), ledgerdomain.EntryDraft{
		MillID:      millID,
		CommodityID: commodityID,
		Direction:   dir,
		Quantity:    decimal.RequireFromString(qty),
		EntryDate:   date,
		SourceType:  sourceType,
		SourceRef:   ref,
	})
	require.NoError(t, err)
}

// Walks one custom-milling season: paddy arrives, is consumed by milling,
// rice and byproduct come out.
func TestBalancesFullCycle(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	millID := f.node.Generate()
	ctx := context.Background()

	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypeGateInward, "GI-001", "500", time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionOut, ledgerdomain.SourceTypeMillingInput, "MB-001", "500", time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "rice-arwa", ledgerdomain.DirectionIn, ledgerdomain.SourceTypeMillingOutput, "MB-001:rice-arwa", "325", time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "khanda", ledgerdomain.DirectionIn, ledgerdomain.SourceTypeMillingOutput, "MB-001:khanda", "25", time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC))

	asOf := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	balances, err := f.balanceSvc.BalancesByCommodity(ctx, millID, asOf)
	require.NoError(t, err)

	assert.True(t, balances["paddy-mota"].IsZero(), "paddy should be fully consumed, got %s", balances["paddy-mota"])
	assert.True(t, balances["rice-arwa"].Equal(decimal.RequireFromString("325")))
	assert.True(t, balances["khanda"].Equal(decimal.RequireFromString("25")))

	rice, err := f.balanceSvc.BalanceAsOf(ctx, millID, "rice-arwa", asOf)
	require.NoError(t, err)
	assert.True(t, rice.Equal(decimal.RequireFromString("325")))
}

func TestBalanceAsOfRespectsDate(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	millID := f.node.Generate()
	ctx := context.Background()

	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-1", "100", time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-2", "50", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))

	nov, err := f.balanceSvc.BalanceAsOf(ctx, millID, "paddy-mota", time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, nov.Equal(decimal.RequireFromString("100")))

	dec, err := f.balanceSvc.BalanceAsOf(ctx, millID, "paddy-mota", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, dec.Equal(decimal.RequireFromString("150")))
}

func TestBalanceSparseHistoryIsZero(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	millID := f.node.Generate()

	balance, err := f.balanceSvc.BalanceAsOf(context.Background(), millID, "rice-arwa", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestBalanceUnknownCommodity(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	_, err := f.balanceSvc.BalanceAsOf(context.Background(), f.node.Generate(), "uranium", time.Now().UTC())
	assert.ErrorIs(t, err, commoditydomain.ErrUnknownCommodity)
}

func TestCheckpointRebuildMatchesFullFold(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	millID := f.node.Generate()
	ctx := context.Background()

	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-1", "300.25", time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionOut, ledgerdomain.SourceTypeSale, "SAL-1", "120.5", time.Date(2024, 11, 12, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-2", "80", time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))

	asOf := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	before, err := f.balanceSvc.BalanceAsOf(ctx, millID, "paddy-mota", asOf)
	require.NoError(t, err)

	require.NoError(t, f.balanceSvc.RebuildCheckpoints(ctx, millID))

	var checkpoints int64
	require.NoError(t, f.db.Model(&balancedomain.BalanceCheckpoint{}).Where("mill_id = ?", millID).Count(&checkpoints).Error)
	assert.EqualValues(t, 3, checkpoints, "expected one checkpoint per completed month oct..dec")

	after, err := f.balanceSvc.BalanceAsOf(ctx, millID, "paddy-mota", asOf)
	require.NoError(t, err)
	assert.True(t, before.Equal(after), "checkpointed fold %s differs from full fold %s", after, before)
}

func TestBackdatedEntryAfterRebuildStaysCorrect(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	millID := f.node.Generate()
	ctx := context.Background()

	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-1", "200", time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-2", "100", time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.balanceSvc.RebuildCheckpoints(ctx, millID))

	// Backdate a purchase into November; the stale checkpoints must go.
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-LATE", "40", time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC))

	balance, err := f.balanceSvc.BalanceAsOf(ctx, millID, "paddy-mota", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("340")), "got %s", balance)
}

// raceAppendRepo appends one backdated entry right before the first
// checkpoint upsert, landing it in the window between the rebuild's fold
// and its writes.
type raceAppendRepo struct {
	balancedomain.Repository
	t      *testing.T
	f      *fixture
	millID snowflake.ID
	once   sync.Once
}

func (r *raceAppendRepo) Upsert(ctx context.Context, db *gorm.DB, checkpoint *balancedomain.BalanceCheckpoint) error {
	r.once.Do(func() {
		r.f.append(r.t, r.millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-RACE", "40", time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC))
	})
	return r.Repository.Upsert(ctx, db, checkpoint)
}

func TestRebuildSurvivesConcurrentBackdatedAppend(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	millID := f.node.Generate()
	ctx := context.Background()

	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-1", "200", time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-2", "100", time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC))

	racySvc := NewService(Params{
		DB:           f.db,
		Log:          f.log,
		Clock:        f.clock,
		Repo:         &raceAppendRepo{Repository: balancerepo.Provide(), t: t, f: f, millID: millID},
		LedgerSvc:    f.ledgerSvc,
		CommoditySvc: f.commoditySvc,
	})
	require.NoError(t, racySvc.RebuildCheckpoints(ctx, millID))

	// The checkpoints written from the pre-append fold must not shadow the
	// backdated purchase.
	balance, err := f.balanceSvc.BalanceAsOf(ctx, millID, "paddy-mota", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("340")), "got %s", balance)

	// A later run with no interference settles the checkpoints again.
	require.NoError(t, f.balanceSvc.RebuildCheckpoints(ctx, millID))
	balance, err = f.balanceSvc.BalanceAsOf(ctx, millID, "paddy-mota", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("340")), "got %s", balance)
}

func TestMovementsInRange(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	millID := f.node.Generate()
	ctx := context.Background()

	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-1", "100", time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionIn, ledgerdomain.SourceTypePurchase, "PUR-2", "60", time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC))
	f.append(t, millID, "paddy-mota", ledgerdomain.DirectionOut, ledgerdomain.SourceTypeSale, "SAL-1", "30", time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC))

	summary, err := f.balanceSvc.MovementsInRange(ctx, millID, "paddy-mota",
		time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.True(t, summary.Opening.Equal(decimal.RequireFromString("100")), "opening %s", summary.Opening)
	assert.True(t, summary.TotalIn.Equal(decimal.RequireFromString("60")))
	assert.True(t, summary.TotalOut.Equal(decimal.RequireFromString("30")))
	assert.True(t, summary.Closing.Equal(decimal.RequireFromString("130")))
}

func TestMovementsRejectsInvertedRange(t *testing.T) {
	f := setupBalance(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	_, err := f.balanceSvc.MovementsInRange(context.Background(), f.node.Generate(), "paddy-mota",
		time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
	)
	assert.ErrorIs(t, err, balancedomain.ErrInvalidRange)
}
