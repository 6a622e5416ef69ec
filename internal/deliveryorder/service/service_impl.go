package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	dodomain "github.com/graindesk/millbook/internal/deliveryorder/domain"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	obsmetrics "github.com/graindesk/millbook/internal/observability/metrics"
	"github.com/graindesk/millbook/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         dodomain.Repository
	LedgerSvc    ledgerdomain.Service
	CommoditySvc commoditydomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         dodomain.Repository
	ledgerSvc    ledgerdomain.Service
	commoditySvc commoditydomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) dodomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("deliveryorder.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		ledgerSvc:    p.LedgerSvc,
		commoditySvc: p.CommoditySvc,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Register(ctx context.Context, req dodomain.RegisterRequest) (dodomain.DeliveryOrder, error) {
	if req.MillID == 0 {
		return dodomain.DeliveryOrder{}, dodomain.ErrInvalidMill
	}
	req.DONumber = strings.TrimSpace(req.DONumber)
	if req.DONumber == "" {
		return dodomain.DeliveryOrder{}, dodomain.ErrInvalidDONumber
	}
	req.PartyRef = strings.TrimSpace(req.PartyRef)
	if req.PartyRef == "" {
		return dodomain.DeliveryOrder{}, dodomain.ErrInvalidPartyRef
	}
	if !req.Direction.Valid() {
		return dodomain.DeliveryOrder{}, dodomain.ErrInvalidDirection
	}
	if !req.CommittedQuantity.IsPositive() {
		return dodomain.DeliveryOrder{}, dodomain.ErrInvalidCommitted
	}
	if req.IssueDate.IsZero() {
		return dodomain.DeliveryOrder{}, dodomain.ErrInvalidIssueDate
	}
	if _, err := s.commoditySvc.Resolve(ctx, req.CommodityID); err != nil {
		return dodomain.DeliveryOrder{}, err
	}

	now := time.Now().UTC()
	order := dodomain.DeliveryOrder{
		ID:                s.genID.Generate(),
		MillID:            req.MillID,
		DONumber:          req.DONumber,
		PartyRef:          req.PartyRef,
		CommodityID:       req.CommodityID,
		Direction:         req.Direction,
		CommittedQuantity: req.CommittedQuantity,
		IssueDate:         req.IssueDate.UTC(),
		DueDate:           req.DueDate,
		Status:            dodomain.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return dodomain.DeliveryOrder{}, dodomain.ErrDuplicateDONumber
		}
		return dodomain.DeliveryOrder{}, err
	}

	s.log.Info("delivery order registered",
		zap.String("mill_id", order.MillID.String()),
		zap.String("do_number", order.DONumber),
		zap.String("commodity_id", order.CommodityID),
		zap.String("committed", order.CommittedQuantity.String()),
	)
	return order, nil
}

func (s *Service) Find(ctx context.Context, millID snowflake.ID, doNumber string) (dodomain.DeliveryOrder, error) {
	order, err := s.find(ctx, millID, doNumber)
	if err != nil {
		return dodomain.DeliveryOrder{}, err
	}
	return *order, nil
}

func (s *Service) List(ctx context.Context, millID snowflake.ID) ([]dodomain.DeliveryOrder, error) {
	if millID == 0 {
		return nil, dodomain.ErrInvalidMill
	}
	return s.repo.List(ctx, s.db, millID)
}

func (s *Service) Remaining(ctx context.Context, millID snowflake.ID, doNumber string) (dodomain.RemainingResult, error) {
	order, err := s.find(ctx, millID, doNumber)
	if err != nil {
		return dodomain.RemainingResult{}, err
	}
	return s.position(ctx, order)
}

func (s *Service) RecordLift(ctx context.Context, req dodomain.LiftRequest) (dodomain.LiftResult, error) {
	order, err := s.find(ctx, req.MillID, req.DONumber)
	if err != nil {
		return dodomain.LiftResult{}, err
	}
	if order.Status == dodomain.StatusCancelled {
		return dodomain.LiftResult{}, dodomain.ErrDOCancelled
	}

	entry, err := s.ledgerSvc.Append(ctx, ledgerdomain.EntryDraft{
		MillID:      order.MillID,
		CommodityID: order.CommodityID,
		Direction:   order.Direction.LiftDirection(),
		Quantity:    req.Quantity,
		EntryDate:   req.EntryDate,
		SourceType:  order.Direction.LiftSourceType(),
		SourceRef:   req.SourceRef,
		DORef:       order.DONumber,
	})
	if err != nil {
		return dodomain.LiftResult{}, err
	}

	position, err := s.position(ctx, order)
	if err != nil {
		return dodomain.LiftResult{}, err
	}
	if position.OverLifted {
		// Physical movement already happened; the over-lift is surfaced for
		// reconciliation, not blocked.
		s.obsMetrics.RecordOverLiftWarning(ctx)
		s.log.Warn("delivery order over-lifted",
			zap.String("mill_id", order.MillID.String()),
			zap.String("do_number", order.DONumber),
			zap.String("committed", position.Committed.String()),
			zap.String("lifted", position.Lifted.String()),
			zap.String("remaining", position.Remaining.String()),
		)
	}
	return dodomain.LiftResult{Entry: entry, Position: position}, nil
}

func (s *Service) Cancel(ctx context.Context, millID snowflake.ID, doNumber string) (dodomain.DeliveryOrder, error) {
	order, err := s.find(ctx, millID, doNumber)
	if err != nil {
		return dodomain.DeliveryOrder{}, err
	}
	if order.Status == dodomain.StatusCancelled {
		return *order, nil
	}
	if err := s.repo.UpdateStatus(ctx, s.db, order.ID, dodomain.StatusCancelled); err != nil {
		return dodomain.DeliveryOrder{}, err
	}
	order.Status = dodomain.StatusCancelled

	s.log.Info("delivery order cancelled",
		zap.String("mill_id", order.MillID.String()),
		zap.String("do_number", order.DONumber),
	)
	return *order, nil
}

func (s *Service) find(ctx context.Context, millID snowflake.ID, doNumber string) (*dodomain.DeliveryOrder, error) {
	if millID == 0 {
		return nil, dodomain.ErrInvalidMill
	}
	doNumber = strings.TrimSpace(doNumber)
	if doNumber == "" {
		return nil, dodomain.ErrInvalidDONumber
	}
	order, err := s.repo.FindByNumber(ctx, s.db, millID, doNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, dodomain.ErrUnknownDO
	}
	return order, nil
}

// position folds every entry tagged with the order's DO number. Entries in
// the lift direction add to lifted; opposite-direction entries (adjustments,
// returns) subtract.
func (s *Service) position(ctx context.Context, order *dodomain.DeliveryOrder) (dodomain.RemainingResult, error) {
	liftDir := order.Direction.LiftDirection()
	lifted := decimal.Zero
	err := s.ledgerSvc.ForEach(ctx, order.MillID, ledgerdomain.QueryFilter{DORef: order.DONumber}, func(entry ledgerdomain.LedgerEntry) error {
		if entry.Direction == liftDir {
			lifted = lifted.Add(entry.Quantity)
		} else {
			lifted = lifted.Sub(entry.Quantity)
		}
		return nil
	})
	if err != nil {
		return dodomain.RemainingResult{}, err
	}

	remaining := order.CommittedQuantity.Sub(lifted)
	return dodomain.RemainingResult{
		Order:      *order,
		Committed:  order.CommittedQuantity,
		Lifted:     lifted,
		Remaining:  remaining,
		OverLifted: remaining.IsNegative(),
	}, nil
}
