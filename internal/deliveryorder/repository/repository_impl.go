package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/graindesk/millbook/internal/deliveryorder/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.DeliveryOrder) error {
	return db.WithContext(ctx).Exec(`
		INSERT INTO delivery_orders
			(id, mill_id, do_number, party_ref, commodity_id, direction, committed_quantity, issue_date, due_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.MillID,
		order.DONumber,
		order.PartyRef,
		order.CommodityID,
		order.Direction,
		order.CommittedQuantity,
		order.IssueDate,
		order.DueDate,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, millID snowflake.ID, doNumber string) (*domain.DeliveryOrder, error) {
	var order domain.DeliveryOrder
	err := db.WithContext(ctx).
		Where("mill_id = ? AND do_number = ?", millID, doNumber).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, millID snowflake.ID) ([]domain.DeliveryOrder, error) {
	var orders []domain.DeliveryOrder
	err := db.WithContext(ctx).
		Where("mill_id = ?", millID).
		Order("issue_date DESC, do_number ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) error {
	return db.WithContext(ctx).
		Model(&domain.DeliveryOrder{}).
		Where("id = ?", id).
		Update("status", status).Error
}
