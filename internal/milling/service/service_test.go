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
	"github.com/graindesk/millbook/internal/config"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	ledgerrepo "github.com/graindesk/millbook/internal/ledger/repository"
	ledgersvc "github.com/graindesk/millbook/internal/ledger/service"
	millingdomain "github.com/graindesk/millbook/internal/milling/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupMilling(t *testing.T) (millingdomain.Service, *gorm.DB, *snowflake.Node) {
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

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	commoditySvc := commoditysvc.NewService(commoditysvc.Params{
		DB:   db,
		Log:  log,
		Repo: commodityrepo.Provide(),
	})
	for _, req := range []commoditydomain.RegisterCommodityRequest{
		{ID: "paddy-mota", Name: "Paddy Mota", Category: commoditydomain.CategoryPaddy, Unit: commoditydomain.UnitQuintal},
		{ID: "rice-arwa", Name: "Rice Arwa", Category: commoditydomain.CategoryRice, Unit: commoditydomain.UnitQuintal},
		{ID: "khanda", Name: "Khanda", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
		{ID: "kodha", Name: "Kodha", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
		{ID: "bhusa", Name: "Bhusa", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
		{ID: "gunny-new", Name: "Gunny Bag New", Category: commoditydomain.CategoryGunny, Unit: commoditydomain.UnitBag},
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
		Log:          log,
		MillingCfg:   config.NewStaticMillingConfigHolder(config.MillingConfig{YieldTolerancePercent: 0.5}),
		LedgerSvc:    ledgerSvc,
		CommoditySvc: commoditySvc,
	})
	return svc, db, node
}

// cleanBatch declares 500 qtl of paddy milled into a 65/10/8/17 split, every
// quantity matching its declared share exactly.
func cleanBatch(millID snowflake.ID) millingdomain.BatchDraft {
	return millingdomain.BatchDraft{
		MillID:           millID,
		Date:             time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC),
		InputCommodityID: "paddy-mota",
		InputQuantity:    decimal.RequireFromString("500"),
		Outputs: []millingdomain.OutputDraft{
			{CommodityID: "rice-arwa", Quantity: decimal.RequireFromString("325"), PercentOfInput: decimal.RequireFromString("65")},
			{CommodityID: "khanda", Quantity: decimal.RequireFromString("50"), PercentOfInput: decimal.RequireFromString("10")},
			{CommodityID: "kodha", Quantity: decimal.RequireFromString("40"), PercentOfInput: decimal.RequireFromString("8")},
			{CommodityID: "bhusa", Quantity: decimal.RequireFromString("85"), PercentOfInput: decimal.RequireFromString("17")},
		},
		SourceRef: "MB-2024-001",
	}
}

func violationCodes(result millingdomain.Result) []string {
	codes := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		codes = append(codes, v.Code)
	}
	return codes
}

func TestValidateCleanBatch(t *testing.T) {
	svc, _, node := setupMilling(t)
	result, err := svc.Validate(context.Background(), cleanBatch(node.Generate()))
	require.NoError(t, err)
	assert.Equal(t, millingdomain.StatusValidated, result.Status)
	assert.Empty(t, result.Violations)
}

func TestValidateWithinTolerance(t *testing.T) {
	svc, _, node := setupMilling(t)
	batch := cleanBatch(node.Generate())
	// 2.4 qtl off on a 500 qtl input is 0.48%, inside the 0.5% band.
	batch.Outputs[0].Quantity = decimal.RequireFromString("327.4")

	result, err := svc.Validate(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, millingdomain.StatusValidated, result.Status)
}

func TestValidateQuantityOutsideTolerance(t *testing.T) {
	svc, _, node := setupMilling(t)
	batch := cleanBatch(node.Generate())
	// 3 qtl off on 500 is 0.6%, outside the band.
	batch.Outputs[0].Quantity = decimal.RequireFromString("328")

	result, err := svc.Validate(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, millingdomain.StatusRejected, result.Status)
	assert.Contains(t, violationCodes(result), millingdomain.ViolationQuantityMismatch)
}

func TestValidatePercentSumOutsideTolerance(t *testing.T) {
	svc, _, node := setupMilling(t)
	batch := cleanBatch(node.Generate())
	batch.Outputs = batch.Outputs[:3] // drops bhusa's 17%

	result, err := svc.Validate(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, millingdomain.StatusRejected, result.Status)
	assert.Contains(t, violationCodes(result), millingdomain.ViolationPercentSum)
}

func TestValidateInputMustBePaddy(t *testing.T) {
	svc, _, node := setupMilling(t)
	batch := cleanBatch(node.Generate())
	batch.InputCommodityID = "rice-arwa"

	result, err := svc.Validate(context.Background(), batch)
	require.NoError(t, err)
	assert.Contains(t, violationCodes(result), millingdomain.ViolationInputNotPaddy)
}

func TestValidateOutputCategories(t *testing.T) {
	svc, _, node := setupMilling(t)
	batch := cleanBatch(node.Generate())
	batch.Outputs[1].CommodityID = "gunny-new"

	result, err := svc.Validate(context.Background(), batch)
	require.NoError(t, err)
	assert.Contains(t, violationCodes(result), millingdomain.ViolationOutputNotMillable)
}

func TestValidateDuplicateOutput(t *testing.T) {
	svc, _, node := setupMilling(t)
	batch := cleanBatch(node.Generate())
	batch.Outputs[1].CommodityID = "rice-arwa"

	result, err := svc.Validate(context.Background(), batch)
	require.NoError(t, err)
	assert.Contains(t, violationCodes(result), millingdomain.ViolationDuplicateOutput)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	svc, _, node := setupMilling(t)
	batch := cleanBatch(node.Generate())
	batch.InputCommodityID = "rice-arwa"
	batch.Outputs[0].Quantity = decimal.RequireFromString("400")

	result, err := svc.Validate(context.Background(), batch)
	require.NoError(t, err)
	codes := violationCodes(result)
	assert.Contains(t, codes, millingdomain.ViolationInputNotPaddy)
	assert.Contains(t, codes, millingdomain.ViolationQuantityMismatch)
}

func TestCommitWritesInputAndOutputs(t *testing.T) {
	svc, db, node := setupMilling(t)
	millID := node.Generate()

	result, err := svc.Commit(context.Background(), cleanBatch(millID))
	require.NoError(t, err)
	assert.Equal(t, millingdomain.StatusCommitted, result.Status)
	require.Len(t, result.Entries, 5)

	assert.Equal(t, ledgerdomain.SourceTypeMillingInput, result.Entries[0].SourceType)
	assert.Equal(t, ledgerdomain.DirectionOut, result.Entries[0].Direction)
	assert.Equal(t, "MB-2024-001", result.Entries[0].SourceRef)
	assert.Equal(t, ledgerdomain.SourceTypeMillingOutput, result.Entries[1].SourceType)
	assert.Equal(t, "MB-2024-001:rice-arwa", result.Entries[1].SourceRef)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Where("mill_id = ?", millID).Count(&count).Error)
	assert.EqualValues(t, 5, count)
}

func TestCommitRejectedWritesNothing(t *testing.T) {
	svc, db, node := setupMilling(t)
	millID := node.Generate()
	batch := cleanBatch(millID)
	batch.Outputs[0].Quantity = decimal.RequireFromString("400")

	result, err := svc.Commit(context.Background(), batch)
	assert.ErrorIs(t, err, millingdomain.ErrBatchRejected)
	assert.Equal(t, millingdomain.StatusRejected, result.Status)
	assert.NotEmpty(t, result.Violations)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Where("mill_id = ?", millID).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestCommitRetryConverges(t *testing.T) {
	svc, db, node := setupMilling(t)
	millID := node.Generate()

	first, err := svc.Commit(context.Background(), cleanBatch(millID))
	require.NoError(t, err)
	second, err := svc.Commit(context.Background(), cleanBatch(millID))
	require.NoError(t, err)

	assert.Equal(t, first.Entries[0].ID, second.Entries[0].ID)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Where("mill_id = ?", millID).Count(&count).Error)
	assert.EqualValues(t, 5, count)
}

func TestValidateStructuralErrors(t *testing.T) {
	svc, _, node := setupMilling(t)
	millID := node.Generate()
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*millingdomain.BatchDraft)
		wantErr error
	}{
		{"zero mill", func(b *millingdomain.BatchDraft) { b.MillID = 0 }, millingdomain.ErrInvalidMill},
		{"zero input", func(b *millingdomain.BatchDraft) { b.InputQuantity = decimal.Zero }, millingdomain.ErrInvalidInput},
		{"zero date", func(b *millingdomain.BatchDraft) { b.Date = time.Time{} }, millingdomain.ErrInvalidDate},
		{"no outputs", func(b *millingdomain.BatchDraft) { b.Outputs = nil }, millingdomain.ErrNoOutputs},
		{"blank ref", func(b *millingdomain.BatchDraft) { b.SourceRef = "  " }, millingdomain.ErrInvalidRef},
		{"zero output qty", func(b *millingdomain.BatchDraft) { b.Outputs[0].Quantity = decimal.Zero }, millingdomain.ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			batch := cleanBatch(millID)
			tc.mutate(&batch)
			_, err := svc.Validate(ctx, batch)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
