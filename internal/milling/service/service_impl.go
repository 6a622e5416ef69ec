package service

import (
	"context"
	"fmt"
	"strings"

	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	"github.com/graindesk/millbook/internal/config"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	millingdomain "github.com/graindesk/millbook/internal/milling/domain"
	obsmetrics "github.com/graindesk/millbook/internal/observability/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	Log          *zap.Logger
	MillingCfg   *config.MillingConfigHolder
	LedgerSvc    ledgerdomain.Service
	CommoditySvc commoditydomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	millingCfg   *config.MillingConfigHolder
	ledgerSvc    ledgerdomain.Service
	commoditySvc commoditydomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) millingdomain.Service {
	return &Service{
		log:          p.Log.Named("milling.service"),
		millingCfg:   p.MillingCfg,
		ledgerSvc:    p.LedgerSvc,
		commoditySvc: p.CommoditySvc,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Validate(ctx context.Context, draft millingdomain.BatchDraft) (millingdomain.Result, error) {
	draft, violations, err := s.check(ctx, draft)
	if err != nil {
		return millingdomain.Result{}, err
	}
	if len(violations) > 0 {
		s.obsMetrics.RecordMillingBatch(ctx, "rejected")
		return millingdomain.Result{Status: millingdomain.StatusRejected, Violations: violations}, nil
	}
	s.obsMetrics.RecordMillingBatch(ctx, "validated")
	return millingdomain.Result{Status: millingdomain.StatusValidated}, nil
}

func (s *Service) Commit(ctx context.Context, draft millingdomain.BatchDraft) (millingdomain.Result, error) {
	draft, violations, err := s.check(ctx, draft)
	if err != nil {
		return millingdomain.Result{}, err
	}
	if len(violations) > 0 {
		s.obsMetrics.RecordMillingBatch(ctx, "rejected")
		s.log.Warn("milling batch rejected",
			zap.String("mill_id", draft.MillID.String()),
			zap.String("source_ref", draft.SourceRef),
			zap.Int("violations", len(violations)),
		)
		return millingdomain.Result{Status: millingdomain.StatusRejected, Violations: violations}, millingdomain.ErrBatchRejected
	}

	drafts := make([]ledgerdomain.EntryDraft, 0, len(draft.Outputs)+1)
	drafts = append(drafts, ledgerdomain.EntryDraft{
		MillID:      draft.MillID,
		CommodityID: draft.InputCommodityID,
		Direction:   ledgerdomain.DirectionOut,
		Quantity:    draft.InputQuantity,
		EntryDate:   draft.Date,
		SourceType:  ledgerdomain.SourceTypeMillingInput,
		SourceRef:   draft.SourceRef,
	})
	for _, output := range draft.Outputs {
		drafts = append(drafts, ledgerdomain.EntryDraft{
			MillID:      draft.MillID,
			CommodityID: output.CommodityID,
			Direction:   ledgerdomain.DirectionIn,
			Quantity:    output.Quantity,
			EntryDate:   draft.Date,
			SourceType:  ledgerdomain.SourceTypeMillingOutput,
			// One batch produces several outputs; the commodity suffix keeps
			// each row's source reference unique within the batch.
			SourceRef: draft.SourceRef + ":" + output.CommodityID,
		})
	}

	entries, err := s.ledgerSvc.AppendBatch(ctx, drafts)
	if err != nil {
		return millingdomain.Result{}, err
	}

	s.obsMetrics.RecordMillingBatch(ctx, "committed")
	s.log.Info("milling batch committed",
		zap.String("mill_id", draft.MillID.String()),
		zap.String("source_ref", draft.SourceRef),
		zap.String("input_quantity", draft.InputQuantity.String()),
		zap.Int("outputs", len(draft.Outputs)),
	)
	return millingdomain.Result{Status: millingdomain.StatusCommitted, Entries: entries}, nil
}

// check separates structural errors (malformed request, unknown commodity)
// from yield violations. Structural errors abort; violations accumulate so
// the operator sees every problem at once.
func (s *Service) check(ctx context.Context, draft millingdomain.BatchDraft) (millingdomain.BatchDraft, []millingdomain.Violation, error) {
	if draft.MillID == 0 {
		return draft, nil, millingdomain.ErrInvalidMill
	}
	if !draft.InputQuantity.IsPositive() {
		return draft, nil, millingdomain.ErrInvalidInput
	}
	if draft.Date.IsZero() {
		return draft, nil, millingdomain.ErrInvalidDate
	}
	if len(draft.Outputs) == 0 {
		return draft, nil, millingdomain.ErrNoOutputs
	}
	draft.SourceRef = strings.TrimSpace(draft.SourceRef)
	if draft.SourceRef == "" {
		return draft, nil, millingdomain.ErrInvalidRef
	}
	for _, output := range draft.Outputs {
		if !output.Quantity.IsPositive() || output.PercentOfInput.IsNegative() {
			return draft, nil, millingdomain.ErrInvalidQuantity
		}
	}

	var violations []millingdomain.Violation

	input, err := s.commoditySvc.Resolve(ctx, draft.InputCommodityID)
	if err != nil {
		return draft, nil, err
	}
	if input.Category != commoditydomain.CategoryPaddy {
		violations = append(violations, millingdomain.Violation{
			Code:    millingdomain.ViolationInputNotPaddy,
			Message: fmt.Sprintf("input commodity %q is %s, expected paddy", input.ID, input.Category),
		})
	}

	seen := make(map[string]bool, len(draft.Outputs))
	percentSum := decimal.Zero
	tolerance := decimal.NewFromFloat(s.millingCfg.Current().YieldTolerancePercent)
	for _, output := range draft.Outputs {
		commodity, err := s.commoditySvc.Resolve(ctx, output.CommodityID)
		if err != nil {
			return draft, nil, err
		}
		if commodity.Category != commoditydomain.CategoryRice && commodity.Category != commoditydomain.CategoryByproduct {
			violations = append(violations, millingdomain.Violation{
				Code:    millingdomain.ViolationOutputNotMillable,
				Message: fmt.Sprintf("output commodity %q is %s, expected rice or byproduct", commodity.ID, commodity.Category),
			})
		}
		if seen[commodity.ID] {
			violations = append(violations, millingdomain.Violation{
				Code:    millingdomain.ViolationDuplicateOutput,
				Message: fmt.Sprintf("output commodity %q declared more than once", commodity.ID),
			})
		}
		seen[commodity.ID] = true
		percentSum = percentSum.Add(output.PercentOfInput)

		// The declared quantity must match the declared share of the input
		// within the tolerance, measured in percentage points of the input.
		implied := draft.InputQuantity.Mul(output.PercentOfInput).Div(hundred)
		allowed := draft.InputQuantity.Mul(tolerance).Div(hundred)
		if output.Quantity.Sub(implied).Abs().GreaterThan(allowed) {
			violations = append(violations, millingdomain.Violation{
				Code: millingdomain.ViolationQuantityMismatch,
				Message: fmt.Sprintf("output %q quantity %s differs from %s%% of input (%s) by more than %s%%",
					commodity.ID, output.Quantity, output.PercentOfInput, implied, tolerance),
			})
		}
	}

	if percentSum.Sub(hundred).Abs().GreaterThan(tolerance) {
		violations = append(violations, millingdomain.Violation{
			Code:    millingdomain.ViolationPercentSum,
			Message: fmt.Sprintf("output percentages sum to %s%%, expected 100%% within %s%%", percentSum, tolerance),
		})
	}

	return draft, violations, nil
}
