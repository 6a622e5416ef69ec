package service

import (
	"context"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/graindesk/millbook/internal/commodity/domain"
	"github.com/graindesk/millbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("commodity.service"),
		repo: p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterCommodityRequest) (domain.Commodity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Commodity{}, domain.ErrInvalidName
	}
	if !req.Category.Valid() {
		return domain.Commodity{}, domain.ErrInvalidCategory
	}
	if !req.Unit.Valid() {
		return domain.Commodity{}, domain.ErrInvalidUnit
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = slug.Make(name)
	} else {
		id = slug.Make(id)
	}
	if id == "" {
		return domain.Commodity{}, domain.ErrInvalidCommodity
	}

	commodity := domain.Commodity{
		ID:        id,
		Name:      name,
		Category:  req.Category,
		Unit:      req.Unit,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &commodity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Commodity{}, domain.ErrDuplicateID
		}
		return domain.Commodity{}, err
	}

	s.log.Info("commodity registered",
		zap.String("commodity_id", commodity.ID),
		zap.String("category", string(commodity.Category)),
	)
	return commodity, nil
}

func (s *Service) Resolve(ctx context.Context, id string) (domain.Commodity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Commodity{}, domain.ErrInvalidCommodity
	}

	commodity, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Commodity{}, err
	}
	if commodity == nil {
		return domain.Commodity{}, domain.ErrUnknownCommodity
	}
	return *commodity, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Commodity, error) {
	return s.repo.List(ctx, s.db)
}
