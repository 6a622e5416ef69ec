package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindLatest returns the newest checkpoint with CheckpointDate <= asOf,
	// or nil when none exists.
	FindLatest(ctx context.Context, db *gorm.DB, millID snowflake.ID, commodityID string, asOf time.Time) (*BalanceCheckpoint, error)
	Upsert(ctx context.Context, db *gorm.DB, checkpoint *BalanceCheckpoint) error
	// DeleteFrom drops checkpoints with CheckpointDate >= date, same predicate
	// the ledger uses when a backdated append invalidates checkpoints.
	DeleteFrom(ctx context.Context, db *gorm.DB, millID snowflake.ID, commodityID string, date time.Time) error
	// DistinctCommodities lists commodities with ledger history for a mill.
	DistinctCommodities(ctx context.Context, db *gorm.DB, millID snowflake.ID) ([]string, error)
}
