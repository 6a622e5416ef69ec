package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

// Direction tells which way stock moves when the order is lifted.
type Direction string

const (
	// DirectionInward covers orders bringing stock in, e.g. government paddy
	// allotments hauled to the mill.
	DirectionInward Direction = "inward"
	// DirectionOutward covers orders shipping stock out, e.g. levy rice
	// deliveries to a procurement depot.
	DirectionOutward Direction = "outward"
)

func (d Direction) Valid() bool {
	return d == DirectionInward || d == DirectionOutward
}

// LiftSourceType maps the order direction onto the gate-pass entry type its
// lifts are recorded as.
func (d Direction) LiftSourceType() ledgerdomain.SourceType {
	if d == DirectionOutward {
		return ledgerdomain.SourceTypeGateOutward
	}
	return ledgerdomain.SourceTypeGateInward
}

// LiftDirection is the ledger direction of a lift against this order.
func (d Direction) LiftDirection() ledgerdomain.Direction {
	if d == DirectionOutward {
		return ledgerdomain.DirectionOut
	}
	return ledgerdomain.DirectionIn
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// DeliveryOrder is a commitment to move a quantity of one commodity against
// an external party. Lifted and remaining quantities are never stored; they
// are derived from ledger entries carrying the order's DO number.
type DeliveryOrder struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	MillID            snowflake.ID    `gorm:"not null;uniqueIndex:ux_do_mill_number,priority:1" json:"mill_id"`
	DONumber          string          `gorm:"column:do_number;type:text;not null;uniqueIndex:ux_do_mill_number,priority:2" json:"do_number"`
	PartyRef          string          `gorm:"type:text;not null" json:"party_ref"`
	CommodityID       string          `gorm:"type:text;not null" json:"commodity_id"`
	Direction         Direction       `gorm:"type:text;not null" json:"direction"`
	CommittedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"committed_quantity"`
	IssueDate         time.Time       `gorm:"not null" json:"issue_date"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	Status            Status          `gorm:"type:text;not null;default:active" json:"status"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (DeliveryOrder) TableName() string { return "delivery_orders" }

// RemainingResult is the derived lift position of one order. Remaining can go
// negative; an over-lifted order is flagged, not rejected.
type RemainingResult struct {
	Order      DeliveryOrder   `json:"order"`
	Committed  decimal.Decimal `json:"committed"`
	Lifted     decimal.Decimal `json:"lifted"`
	Remaining  decimal.Decimal `json:"remaining"`
	OverLifted bool            `json:"over_lifted"`
}

// LiftResult pairs the appended ledger entry with the order position after
// the lift.
type LiftResult struct {
	Entry    ledgerdomain.LedgerEntry `json:"entry"`
	Position RemainingResult          `json:"position"`
}
