package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// EntryDraft is the caller-supplied shape of a prospective ledger entry.
type EntryDraft struct {
	MillID      snowflake.ID
	CommodityID string
	Direction   Direction
	Quantity    decimal.Decimal
	EntryDate   time.Time
	SourceType  SourceType
	SourceRef   string
	DORef       string
}

// QueryFilter narrows a sequence-ordered entry read. Zero values mean "no
// constraint".
type QueryFilter struct {
	CommodityID string
	DORef       string
	From        *time.Time
	To          *time.Time
	AfterSeq    int64
	Limit       int
}

type Service interface {
	// Append validates and persists one entry. Retrying with the same
	// (millId, sourceType, sourceRef) returns the already-written entry.
	Append(ctx context.Context, draft EntryDraft) (LedgerEntry, error)
	// AppendBatch persists all drafts in one transaction; readers never
	// observe a partial batch.
	AppendBatch(ctx context.Context, drafts []EntryDraft) ([]LedgerEntry, error)
	// List returns entries ordered by sequence number ascending.
	List(ctx context.Context, millID snowflake.ID, filter QueryFilter) ([]LedgerEntry, error)
	// ForEach streams entries in sequence order without materializing the
	// full result. The fold stops at the first fn error.
	ForEach(ctx context.Context, millID snowflake.ID, filter QueryFilter, fn func(LedgerEntry) error) error
}

var (
	ErrInvalidMill       = errors.New("invalid_mill")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidDirection  = errors.New("invalid_direction")
	ErrInvalidSourceType = errors.New("invalid_source_type")
	ErrInvalidSourceRef  = errors.New("invalid_source_ref")
	ErrInvalidEntryDate  = errors.New("invalid_entry_date")
	ErrDirectionMismatch = errors.New("direction_source_mismatch")
	ErrEmptyBatch        = errors.New("empty_batch")
)
