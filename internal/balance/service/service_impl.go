package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	"github.com/graindesk/millbook/internal/clock"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	obsmetrics "github.com/graindesk/millbook/internal/observability/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Repo         balancedomain.Repository
	LedgerSvc    ledgerdomain.Service
	CommoditySvc commoditydomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	repo         balancedomain.Repository
	ledgerSvc    ledgerdomain.Service
	commoditySvc commoditydomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) balancedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("balance.service"),
		clock:        p.Clock,
		repo:         p.Repo,
		ledgerSvc:    p.LedgerSvc,
		commoditySvc: p.CommoditySvc,
		obsMetrics:   p.ObsMetrics,
	}
}

// BalanceAsOf resolves to zero for a commodity with no entries; sparse
// history is normal, not an error.
func (s *Service) BalanceAsOf(ctx context.Context, millID snowflake.ID, commodityID string, asOf time.Time) (decimal.Decimal, error) {
	if millID == 0 {
		return decimal.Zero, balancedomain.ErrInvalidMill
	}
	if _, err := s.commoditySvc.Resolve(ctx, commodityID); err != nil {
		return decimal.Zero, err
	}

	asOf = asOf.UTC()
	balance := decimal.Zero
	filter := ledgerdomain.QueryFilter{CommodityID: commodityID, To: &asOf}

	// A checkpoint covers entries dated strictly before its checkpoint date,
	// so the delta fold starts at the checkpoint date inclusive.
	checkpoint, err := s.repo.FindLatest(ctx, s.db, millID, commodityID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if checkpoint != nil {
		balance = checkpoint.Balance
		from := checkpoint.CheckpointDate
		filter.From = &from
	}

	err = s.ledgerSvc.ForEach(ctx, millID, filter, func(entry ledgerdomain.LedgerEntry) error {
		balance = balance.Add(entry.SignedQuantity())
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Service) BalancesByCommodity(ctx context.Context, millID snowflake.ID, asOf time.Time) (map[string]decimal.Decimal, error) {
	if millID == 0 {
		return nil, balancedomain.ErrInvalidMill
	}

	asOf = asOf.UTC()
	balances := make(map[string]decimal.Decimal)
	err := s.ledgerSvc.ForEach(ctx, millID, ledgerdomain.QueryFilter{To: &asOf}, func(entry ledgerdomain.LedgerEntry) error {
		balances[entry.CommodityID] = balances[entry.CommodityID].Add(entry.SignedQuantity())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (s *Service) MovementsInRange(ctx context.Context, millID snowflake.ID, commodityID string, from, to time.Time) (balancedomain.MovementSummary, error) {
	if millID == 0 {
		return balancedomain.MovementSummary{}, balancedomain.ErrInvalidMill
	}
	if _, err := s.commoditySvc.Resolve(ctx, commodityID); err != nil {
		return balancedomain.MovementSummary{}, err
	}
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return balancedomain.MovementSummary{}, balancedomain.ErrInvalidRange
	}

	summary := balancedomain.MovementSummary{
		Opening:  decimal.Zero,
		Closing:  decimal.Zero,
		TotalIn:  decimal.Zero,
		TotalOut: decimal.Zero,
	}
	err := s.ledgerSvc.ForEach(ctx, millID, ledgerdomain.QueryFilter{CommodityID: commodityID, To: &to}, func(entry ledgerdomain.LedgerEntry) error {
		if entry.EntryDate.Before(from) {
			summary.Opening = summary.Opening.Add(entry.SignedQuantity())
			return nil
		}
		if entry.Direction == ledgerdomain.DirectionOut {
			summary.TotalOut = summary.TotalOut.Add(entry.Quantity)
		} else {
			summary.TotalIn = summary.TotalIn.Add(entry.Quantity)
		}
		return nil
	})
	if err != nil {
		return balancedomain.MovementSummary{}, err
	}
	summary.Closing = summary.Opening.Add(summary.TotalIn).Sub(summary.TotalOut)
	return summary, nil
}

func (s *Service) RebuildCheckpoints(ctx context.Context, millID snowflake.ID) error {
	if millID == 0 {
		return balancedomain.ErrInvalidMill
	}

	commodities, err := s.repo.DistinctCommodities(ctx, s.db, millID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, commodityID := range commodities {
		if err := s.rebuildCommodity(ctx, millID, commodityID, now); err != nil {
			return err
		}
	}

	s.obsMetrics.RecordCheckpointRebuild(ctx)
	s.log.Debug("checkpoints rebuilt",
		zap.String("mill_id", millID.String()),
		zap.Int("commodities", len(commodities)),
	)
	return nil
}

// rebuildCommodity recomputes one commodity's monthly checkpoints by folding
// its full history into month buckets. Only completed months get a
// checkpoint; the running month stays a live delta fold.
func (s *Service) rebuildCommodity(ctx context.Context, millID snowflake.ID, commodityID string, now time.Time) error {
	deltas := make(map[time.Time]decimal.Decimal)
	var foldedSeq int64
	err := s.ledgerSvc.ForEach(ctx, millID, ledgerdomain.QueryFilter{CommodityID: commodityID}, func(entry ledgerdomain.LedgerEntry) error {
		if entry.Seq > foldedSeq {
			foldedSeq = entry.Seq
		}
		month := monthStart(entry.EntryDate)
		deltas[month] = deltas[month].Add(entry.SignedQuantity())
		return nil
	})
	if err != nil {
		return err
	}
	if len(deltas) == 0 {
		return nil
	}

	months := make([]time.Time, 0, len(deltas))
	for month := range deltas {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	cutoff := monthStart(now)
	running := decimal.Zero
	for month := months[0]; month.Before(cutoff); month = month.AddDate(0, 1, 0) {
		running = running.Add(deltas[month])
		checkpointDate := month.AddDate(0, 1, 0)
		checkpoint := &balancedomain.BalanceCheckpoint{
			MillID:         millID,
			CommodityID:    commodityID,
			CheckpointDate: checkpointDate,
			Balance:        running,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.Upsert(ctx, s.db, checkpoint); err != nil {
			return err
		}
	}

	return s.dropCheckpointsRacedBy(ctx, millID, commodityID, foldedSeq)
}

// dropCheckpointsRacedBy re-applies the invalidation of any entry appended
// while the rebuild was folding. Such an entry deleted the checkpoints it
// touches before the rebuild's upserts landed; those upserts must not
// resurrect them. Dropping a checkpoint is always safe, reads fall back to
// the full fold until the next rebuild.
func (s *Service) dropCheckpointsRacedBy(ctx context.Context, millID snowflake.ID, commodityID string, afterSeq int64) error {
	var earliest *time.Time
	err := s.ledgerSvc.ForEach(ctx, millID, ledgerdomain.QueryFilter{CommodityID: commodityID, AfterSeq: afterSeq}, func(entry ledgerdomain.LedgerEntry) error {
		if earliest == nil || entry.EntryDate.Before(*earliest) {
			date := entry.EntryDate
			earliest = &date
		}
		return nil
	})
	if err != nil {
		return err
	}
	if earliest == nil {
		return nil
	}
	return s.repo.DeleteFrom(ctx, s.db, millID, commodityID, *earliest)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
