package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Direction is the stock effect of an entry.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// SourceType names the business event an entry originates from.
type SourceType string

const (
	SourceTypePurchase      SourceType = "purchase"
	SourceTypeSale          SourceType = "sale"
	SourceTypeGateInward    SourceType = "gate_inward"
	SourceTypeGateOutward   SourceType = "gate_outward"
	SourceTypeMillingInput  SourceType = "milling_input"
	SourceTypeMillingOutput SourceType = "milling_output"
	// SourceTypeAdjustment compensates a mis-recorded entry; its sourceRef
	// points at the entry being corrected, and either direction is allowed.
	SourceTypeAdjustment SourceType = "adjustment"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceTypePurchase, SourceTypeSale, SourceTypeGateInward, SourceTypeGateOutward,
		SourceTypeMillingInput, SourceTypeMillingOutput, SourceTypeAdjustment:
		return true
	default:
		return false
	}
}

// ExpectedDirection returns the direction a source type must carry.
// Adjustment entries are free to go either way and return ok=false.
func ExpectedDirection(s SourceType) (Direction, bool) {
	switch s {
	case SourceTypePurchase, SourceTypeGateInward, SourceTypeMillingOutput:
		return DirectionIn, true
	case SourceTypeSale, SourceTypeGateOutward, SourceTypeMillingInput:
		return DirectionOut, true
	default:
		return "", false
	}
}

// LedgerEntry is one immutable stock movement. Entries are never updated or
// deleted; corrections are new adjustment entries.
type LedgerEntry struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	MillID snowflake.ID `gorm:"not null;index:idx_ledger_mill_seq,priority:1;index:idx_ledger_mill_commodity_date,priority:1;uniqueIndex:ux_ledger_mill_source,priority:1" json:"mill_id"`
	// Seq is the per-mill append order, the sole ordering key. EntryDate is
	// business data and may be backdated.
	Seq           int64           `gorm:"not null;index:idx_ledger_mill_seq,priority:2" json:"seq"`
	CommodityID   string          `gorm:"type:text;not null;index:idx_ledger_mill_commodity_date,priority:2" json:"commodity_id"`
	Direction     Direction       `gorm:"type:text;not null" json:"direction"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	EntryDate     time.Time       `gorm:"not null;index:idx_ledger_mill_commodity_date,priority:3" json:"entry_date"`
	SourceType    SourceType      `gorm:"type:text;not null;uniqueIndex:ux_ledger_mill_source,priority:2" json:"source_type"`
	SourceRef     string          `gorm:"type:text;not null;uniqueIndex:ux_ledger_mill_source,priority:3" json:"source_ref"`
	DORef         string          `gorm:"column:do_ref;type:text;index" json:"do_ref,omitempty"`
	CorrelationID string          `gorm:"type:text" json:"correlation_id,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// SignedQuantity is the balance delta this entry contributes.
func (e LedgerEntry) SignedQuantity() decimal.Decimal {
	if e.Direction == DirectionOut {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// MillSequence backs the per-mill monotonic append counter.
type MillSequence struct {
	MillID  snowflake.ID `gorm:"primaryKey"`
	NextSeq int64        `gorm:"not null"`
}

// TableName sets the database table name.
func (MillSequence) TableName() string { return "mill_sequences" }
