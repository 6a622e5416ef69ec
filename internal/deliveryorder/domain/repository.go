package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *DeliveryOrder) error
	// FindByNumber returns nil when the mill has no order with that number.
	FindByNumber(ctx context.Context, db *gorm.DB, millID snowflake.ID, doNumber string) (*DeliveryOrder, error)
	List(ctx context.Context, db *gorm.DB, millID snowflake.ID) ([]DeliveryOrder, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error
}
