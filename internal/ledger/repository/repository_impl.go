package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/graindesk/millbook/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) NextSequences(ctx context.Context, tx *gorm.DB, millID snowflake.ID, n int64) (int64, error) {
	if n < 1 {
		return 0, errors.New("sequence reservation must be positive")
	}

	// The upsert keeps concurrent appends for one mill serialized on the
	// counter row, which is what makes Seq a total order per mill.
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO mill_sequences (mill_id, next_seq) VALUES (?, ?)
		 ON CONFLICT (mill_id) DO UPDATE SET next_seq = mill_sequences.next_seq + ?`,
		millID, n, n,
	).Error; err != nil {
		return 0, err
	}

	var nextSeq int64
	if err := tx.WithContext(ctx).
		Raw(`SELECT next_seq FROM mill_sequences WHERE mill_id = ?`, millID).
		Scan(&nextSeq).Error; err != nil {
		return 0, err
	}

	return nextSeq - n + 1, nil
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, entry *domain.LedgerEntry) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, mill_id, seq, commodity_id, direction, quantity, entry_date,
			source_type, source_ref, do_ref, correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (mill_id, source_type, source_ref) DO NOTHING`,
		entry.ID,
		entry.MillID,
		entry.Seq,
		entry.CommodityID,
		entry.Direction,
		entry.Quantity,
		entry.EntryDate.UTC(),
		entry.SourceType,
		entry.SourceRef,
		entry.DORef,
		entry.CorrelationID,
		entry.CreatedAt.UTC(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindBySource(ctx context.Context, db *gorm.DB, millID snowflake.ID, sourceType domain.SourceType, sourceRef string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := db.WithContext(ctx).
		Where("mill_id = ? AND source_type = ? AND source_ref = ?", millID, sourceType, sourceRef).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, millID snowflake.ID, filter domain.QueryFilter) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := applyFilter(db.WithContext(ctx).Model(&domain.LedgerEntry{}), millID, filter).
		Order("seq asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ForEach(ctx context.Context, db *gorm.DB, millID snowflake.ID, filter domain.QueryFilter, fn func(domain.LedgerEntry) error) error {
	rows, err := applyFilter(db.WithContext(ctx).Model(&domain.LedgerEntry{}), millID, filter).
		Order("seq asc").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.LedgerEntry
		if err := db.ScanRows(rows, &entry); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *repo) InvalidateCheckpoints(ctx context.Context, tx *gorm.DB, millID snowflake.ID, commodityID string, date time.Time) error {
	return tx.WithContext(ctx).Exec(
		`DELETE FROM balance_checkpoints
		 WHERE mill_id = ? AND commodity_id = ? AND checkpoint_date >= ?`,
		millID, commodityID, date.UTC(),
	).Error
}

func (r *repo) DistinctMills(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var raw []int64
	err := db.WithContext(ctx).
		Model(&domain.LedgerEntry{}).
		Distinct("mill_id").
		Order("mill_id asc").
		Pluck("mill_id", &raw).Error
	if err != nil {
		return nil, err
	}

	mills := make([]snowflake.ID, 0, len(raw))
	for _, id := range raw {
		mills = append(mills, snowflake.ID(id))
	}
	return mills, nil
}

func applyFilter(stmt *gorm.DB, millID snowflake.ID, filter domain.QueryFilter) *gorm.DB {
	stmt = stmt.Where("mill_id = ?", millID)
	if filter.CommodityID != "" {
		stmt = stmt.Where("commodity_id = ?", filter.CommodityID)
	}
	if filter.DORef != "" {
		stmt = stmt.Where("do_ref = ?", filter.DORef)
	}
	if filter.From != nil {
		stmt = stmt.Where("entry_date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		stmt = stmt.Where("entry_date <= ?", filter.To.UTC())
	}
	if filter.AfterSeq > 0 {
		stmt = stmt.Where("seq > ?", filter.AfterSeq)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	return stmt
}
