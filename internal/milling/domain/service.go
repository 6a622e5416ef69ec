package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Validate runs the yield checks without writing anything. A batch with
	// violations comes back rejected with every violation listed, not just
	// the first.
	Validate(ctx context.Context, draft BatchDraft) (Result, error)
	// Commit re-validates and, only when clean, appends the input consumption
	// and every output production to the ledger in one transaction. A
	// rejected batch writes nothing.
	Commit(ctx context.Context, draft BatchDraft) (Result, error)
}

var (
	ErrInvalidMill     = errors.New("invalid_mill")
	ErrInvalidInput    = errors.New("invalid_input_quantity")
	ErrInvalidDate     = errors.New("invalid_batch_date")
	ErrNoOutputs       = errors.New("no_outputs")
	ErrInvalidRef      = errors.New("invalid_source_ref")
	ErrBatchRejected   = errors.New("milling_batch_rejected")
	ErrInvalidQuantity = errors.New("invalid_output_quantity")
)
