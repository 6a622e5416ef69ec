package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	obsmetrics "github.com/graindesk/millbook/internal/observability/metrics"
	"github.com/graindesk/millbook/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         ledgerdomain.Repository
	CommoditySvc commoditydomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         ledgerdomain.Repository
	commoditySvc commoditydomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("ledger.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		commoditySvc: p.CommoditySvc,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Append(ctx context.Context, draft ledgerdomain.EntryDraft) (ledgerdomain.LedgerEntry, error) {
	entries, err := s.AppendBatch(ctx, []ledgerdomain.EntryDraft{draft})
	if err != nil {
		return ledgerdomain.LedgerEntry{}, err
	}
	return entries[0], nil
}

func (s *Service) AppendBatch(ctx context.Context, drafts []ledgerdomain.EntryDraft) ([]ledgerdomain.LedgerEntry, error) {
	if len(drafts) == 0 {
		return nil, ledgerdomain.ErrEmptyBatch
	}

	// All validation happens before any write; a rejected draft fails the
	// whole batch without touching storage.
	normalized := make([]ledgerdomain.EntryDraft, 0, len(drafts))
	for _, draft := range drafts {
		clean, err := s.normalize(ctx, draft)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, clean)
	}

	millID := normalized[0].MillID
	for _, draft := range normalized[1:] {
		if draft.MillID != millID {
			return nil, ledgerdomain.ErrInvalidMill
		}
	}

	ctx, cid := correlation.EnsureCorrelationID(ctx)

	var written []ledgerdomain.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		firstSeq, err := s.repo.NextSequences(ctx, tx, millID, int64(len(normalized)))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		written = make([]ledgerdomain.LedgerEntry, 0, len(normalized))
		for i, draft := range normalized {
			entry := ledgerdomain.LedgerEntry{
				ID:            s.genID.Generate(),
				MillID:        draft.MillID,
				Seq:           firstSeq + int64(i),
				CommodityID:   draft.CommodityID,
				Direction:     draft.Direction,
				Quantity:      draft.Quantity,
				EntryDate:     draft.EntryDate.UTC(),
				SourceType:    draft.SourceType,
				SourceRef:     draft.SourceRef,
				DORef:         draft.DORef,
				CorrelationID: cid,
				CreatedAt:     now,
			}

			inserted, err := s.repo.Insert(ctx, tx, &entry)
			if err != nil {
				return err
			}
			if !inserted {
				// Retried write: converge on the entry already recorded for
				// this (mill, sourceType, sourceRef).
				existing, err := s.repo.FindBySource(ctx, tx, entry.MillID, entry.SourceType, entry.SourceRef)
				if err != nil {
					return err
				}
				if existing != nil {
					written = append(written, *existing)
					continue
				}
				return gorm.ErrInvalidData
			}

			// Backdated entries make any checkpoint at or after their date
			// stale; drop those inside the same transaction.
			if err := s.repo.InvalidateCheckpoints(ctx, tx, entry.MillID, entry.CommodityID, entry.EntryDate); err != nil {
				return err
			}

			written = append(written, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range written {
		s.obsMetrics.RecordLedgerEntry(ctx, string(entry.SourceType))
	}
	s.log.Debug("ledger entries appended",
		zap.String("mill_id", millID.String()),
		zap.Int("count", len(written)),
		zap.String("correlation_id", cid),
	)

	return written, nil
}

func (s *Service) List(ctx context.Context, millID snowflake.ID, filter ledgerdomain.QueryFilter) ([]ledgerdomain.LedgerEntry, error) {
	if millID == 0 {
		return nil, ledgerdomain.ErrInvalidMill
	}
	return s.repo.List(ctx, s.db, millID, filter)
}

func (s *Service) ForEach(ctx context.Context, millID snowflake.ID, filter ledgerdomain.QueryFilter, fn func(ledgerdomain.LedgerEntry) error) error {
	if millID == 0 {
		return ledgerdomain.ErrInvalidMill
	}
	return s.repo.ForEach(ctx, s.db, millID, filter, fn)
}

func (s *Service) normalize(ctx context.Context, draft ledgerdomain.EntryDraft) (ledgerdomain.EntryDraft, error) {
	if draft.MillID == 0 {
		return ledgerdomain.EntryDraft{}, ledgerdomain.ErrInvalidMill
	}
	if !draft.SourceType.Valid() {
		return ledgerdomain.EntryDraft{}, ledgerdomain.ErrInvalidSourceType
	}
	if !draft.Direction.Valid() {
		return ledgerdomain.EntryDraft{}, ledgerdomain.ErrInvalidDirection
	}
	if expected, ok := ledgerdomain.ExpectedDirection(draft.SourceType); ok && draft.Direction != expected {
		return ledgerdomain.EntryDraft{}, ledgerdomain.ErrDirectionMismatch
	}
	if !draft.Quantity.IsPositive() {
		return ledgerdomain.EntryDraft{}, ledgerdomain.ErrInvalidQuantity
	}
	if draft.EntryDate.IsZero() {
		return ledgerdomain.EntryDraft{}, ledgerdomain.ErrInvalidEntryDate
	}

	draft.SourceRef = strings.TrimSpace(draft.SourceRef)
	if draft.SourceRef == "" {
		return ledgerdomain.EntryDraft{}, ledgerdomain.ErrInvalidSourceRef
	}
	draft.DORef = strings.TrimSpace(draft.DORef)

	draft.CommodityID = strings.TrimSpace(draft.CommodityID)
	if _, err := s.commoditySvc.Resolve(ctx, draft.CommodityID); err != nil {
		return ledgerdomain.EntryDraft{}, err
	}

	return draft, nil
}
