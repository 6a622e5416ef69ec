package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	// BalanceAsOf folds the ledger up to and including asOf. Uses the latest
	// usable checkpoint plus a delta fold when one exists.
	BalanceAsOf(ctx context.Context, millID snowflake.ID, commodityID string, asOf time.Time) (decimal.Decimal, error)
	// BalancesByCommodity computes every commodity balance for the mill in
	// one pass over its entries.
	BalancesByCommodity(ctx context.Context, millID snowflake.ID, asOf time.Time) (map[string]decimal.Decimal, error)
	// MovementsInRange reports opening/closing balances and in/out totals
	// for entries dated inside [from, to].
	MovementsInRange(ctx context.Context, millID snowflake.ID, commodityID string, from, to time.Time) (MovementSummary, error)
	// RebuildCheckpoints recomputes the mill's monthly checkpoints from the
	// ledger. Safe to run at any time; checkpoints are not a source of truth.
	RebuildCheckpoints(ctx context.Context, millID snowflake.ID) error
}

var (
	ErrInvalidMill  = errors.New("invalid_mill")
	ErrInvalidRange = errors.New("invalid_date_range")
)
