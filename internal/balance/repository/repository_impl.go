package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/graindesk/millbook/internal/balance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB, millID snowflake.ID, commodityID string, asOf time.Time) (*domain.BalanceCheckpoint, error) {
	var checkpoint domain.BalanceCheckpoint
	err := db.WithContext(ctx).
		Where("mill_id = ? AND commodity_id = ? AND checkpoint_date <= ?", millID, commodityID, asOf).
		Order("checkpoint_date DESC").
		First(&checkpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &checkpoint, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, checkpoint *domain.BalanceCheckpoint) error {
	return db.WithContext(ctx).Exec(`
		INSERT INTO balance_checkpoints (mill_id, commodity_id, checkpoint_date, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (mill_id, commodity_id, checkpoint_date)
		DO UPDATE SET balance = ?, updated_at = ?`,
		checkpoint.MillID,
		checkpoint.CommodityID,
		checkpoint.CheckpointDate,
		checkpoint.Balance,
		checkpoint.CreatedAt,
		checkpoint.UpdatedAt,
		checkpoint.Balance,
		checkpoint.UpdatedAt,
	).Error
}

func (r *repo) DeleteFrom(ctx context.Context, db *gorm.DB, millID snowflake.ID, commodityID string, date time.Time) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM balance_checkpoints
		 WHERE mill_id = ? AND commodity_id = ? AND checkpoint_date >= ?`,
		millID, commodityID, date.UTC(),
	).Error
}

func (r *repo) DistinctCommodities(ctx context.Context, db *gorm.DB, millID snowflake.ID) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Table("ledger_entries").
		Where("mill_id = ?", millID).
		Distinct("commodity_id").
		Order("commodity_id ASC").
		Pluck("commodity_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
