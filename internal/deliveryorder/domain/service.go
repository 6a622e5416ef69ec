package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RegisterRequest captures a new commitment.
type RegisterRequest struct {
	MillID            snowflake.ID
	DONumber          string
	PartyRef          string
	CommodityID       string
	Direction         Direction
	CommittedQuantity decimal.Decimal
	IssueDate         time.Time
	DueDate           *time.Time
}

// LiftRequest records one physical movement against an order.
type LiftRequest struct {
	MillID    snowflake.ID
	DONumber  string
	Quantity  decimal.Decimal
	EntryDate time.Time
	SourceRef string
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (DeliveryOrder, error)
	// Find returns the order for a mill's DO number.
	Find(ctx context.Context, millID snowflake.ID, doNumber string) (DeliveryOrder, error)
	// List returns the mill's orders, newest issue date first.
	List(ctx context.Context, millID snowflake.ID) ([]DeliveryOrder, error)
	// Remaining derives the order's lifted and remaining quantities from the
	// ledger entries tagged with its DO number.
	Remaining(ctx context.Context, millID snowflake.ID, doNumber string) (RemainingResult, error)
	// RecordLift appends a gate-pass ledger entry against the order and
	// returns the resulting position. Over-lifting is recorded and flagged,
	// never rejected.
	RecordLift(ctx context.Context, req LiftRequest) (LiftResult, error)
	// Cancel marks the order cancelled. Lifts already recorded stay on the
	// ledger; further lifts are refused.
	Cancel(ctx context.Context, millID snowflake.ID, doNumber string) (DeliveryOrder, error)
}

var (
	ErrInvalidMill       = errors.New("invalid_mill")
	ErrInvalidDONumber   = errors.New("invalid_do_number")
	ErrInvalidPartyRef   = errors.New("invalid_party_ref")
	ErrInvalidDirection  = errors.New("invalid_do_direction")
	ErrInvalidCommitted  = errors.New("invalid_committed_quantity")
	ErrInvalidIssueDate  = errors.New("invalid_issue_date")
	ErrDuplicateDONumber = errors.New("duplicate_do_number")
	ErrUnknownDO         = errors.New("unknown_delivery_order")
	ErrDOCancelled       = errors.New("delivery_order_cancelled")
)
