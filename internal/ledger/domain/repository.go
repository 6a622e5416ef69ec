package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// NextSequences reserves n consecutive per-mill sequence numbers and
	// returns the first. Must run inside the caller's transaction.
	NextSequences(ctx context.Context, tx *gorm.DB, millID snowflake.ID, n int64) (int64, error)
	// Insert writes one entry. Returns inserted=false when an entry with the
	// same (mill_id, source_type, source_ref) already exists.
	Insert(ctx context.Context, tx *gorm.DB, entry *LedgerEntry) (inserted bool, err error)
	FindBySource(ctx context.Context, db *gorm.DB, millID snowflake.ID, sourceType SourceType, sourceRef string) (*LedgerEntry, error)
	List(ctx context.Context, db *gorm.DB, millID snowflake.ID, filter QueryFilter) ([]LedgerEntry, error)
	ForEach(ctx context.Context, db *gorm.DB, millID snowflake.ID, filter QueryFilter, fn func(LedgerEntry) error) error
	// InvalidateCheckpoints drops derived balance checkpoints at or after
	// date, so backdated appends cannot leave stale snapshots behind. Runs
	// in the append transaction.
	InvalidateCheckpoints(ctx context.Context, tx *gorm.DB, millID snowflake.ID, commodityID string, date time.Time) error
	// DistinctMills lists every mill that has ledger history.
	DistinctMills(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
}
