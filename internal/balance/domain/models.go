package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BalanceCheckpoint is a derived monthly snapshot of the running balance.
// A checkpoint covers every entry dated strictly before CheckpointDate.
// Checkpoints are a cache over the ledger and can be rebuilt from scratch
// at any time without correctness loss.
type BalanceCheckpoint struct {
	MillID         snowflake.ID    `gorm:"primaryKey" json:"mill_id"`
	CommodityID    string          `gorm:"type:text;primaryKey" json:"commodity_id"`
	CheckpointDate time.Time       `gorm:"primaryKey" json:"checkpoint_date"`
	Balance        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BalanceCheckpoint) TableName() string { return "balance_checkpoints" }

// MovementSummary backs the stock-by-action views for one date range.
type MovementSummary struct {
	Opening  decimal.Decimal `json:"opening"`
	Closing  decimal.Decimal `json:"closing"`
	TotalIn  decimal.Decimal `json:"total_in"`
	TotalOut decimal.Decimal `json:"total_out"`
}
