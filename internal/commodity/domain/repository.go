package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, commodity *Commodity) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Commodity, error)
	List(ctx context.Context, db *gorm.DB) ([]Commodity, error)
}
