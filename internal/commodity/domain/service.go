package domain

import (
	"context"
	"errors"
)

type RegisterCommodityRequest struct {
	// ID is optional; when empty it is derived from Name.
	ID       string
	Name     string
	Category Category
	Unit     Unit
}

type Service interface {
	Register(ctx context.Context, req RegisterCommodityRequest) (Commodity, error)
	Resolve(ctx context.Context, id string) (Commodity, error)
	List(ctx context.Context) ([]Commodity, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidCategory  = errors.New("invalid_category")
	ErrInvalidUnit      = errors.New("invalid_unit")
	ErrDuplicateID      = errors.New("duplicate_commodity_id")
	ErrUnknownCommodity = errors.New("unknown_commodity")
	ErrInvalidCommodity = errors.New("invalid_commodity_id")
)
