package repository

import (
	"context"
	"errors"

	"github.com/graindesk/millbook/internal/commodity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, commodity *domain.Commodity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commodities (id, name, category, unit, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		commodity.ID,
		commodity.Name,
		commodity.Category,
		commodity.Unit,
		commodity.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Commodity, error) {
	var commodity domain.Commodity
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&commodity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commodity, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Commodity, error) {
	var commodities []domain.Commodity
	err := db.WithContext(ctx).
		Model(&domain.Commodity{}).
		Order("category asc, id asc").
		Find(&commodities).Error
	if err != nil {
		return nil, err
	}
	return commodities, nil
}
