package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

// OutputDraft is one declared product of a milling batch.
type OutputDraft struct {
	CommodityID string `json:"commodity_id"`
	// Quantity is the weighed output.
	Quantity decimal.Decimal `json:"quantity"`
	// PercentOfInput is the operator-declared yield share, e.g. 65 for head
	// rice out of paddy.
	PercentOfInput decimal.Decimal `json:"percent_of_input"`
}

// BatchDraft is a full milling run as declared at the gate: one paddy input
// consumed, several outputs produced.
type BatchDraft struct {
	MillID           snowflake.ID    `json:"mill_id"`
	Date             time.Time       `json:"date"`
	InputCommodityID string          `json:"input_commodity_id"`
	InputQuantity    decimal.Decimal `json:"input_quantity"`
	Outputs          []OutputDraft   `json:"outputs"`
	SourceRef        string          `json:"source_ref"`
}

// Violation is one failed yield check. Violations carry stable codes so
// callers can distinguish tolerance breaches from structural problems.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ViolationInputNotPaddy     = "input_not_paddy"
	ViolationOutputNotMillable = "output_not_millable"
	ViolationDuplicateOutput   = "duplicate_output"
	ViolationPercentSum        = "percent_sum_out_of_tolerance"
	ViolationQuantityMismatch  = "quantity_percent_mismatch"
)

// Status is the lifecycle of one validated batch.
type Status string

const (
	StatusValidated Status = "validated"
	StatusCommitted Status = "committed"
	StatusRejected  Status = "rejected"
)

// Result reports a validation or commit outcome. Entries is populated only
// after a successful commit.
type Result struct {
	Status     Status                     `json:"status"`
	Violations []Violation                `json:"violations,omitempty"`
	Entries    []ledgerdomain.LedgerEntry `json:"entries,omitempty"`
}
