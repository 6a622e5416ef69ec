package seed

import (
	"context"
	"errors"

	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	"github.com/graindesk/millbook/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// catalog is the standard custom-milling commodity set. Seeding is
// idempotent; commodities already registered are left untouched.
var catalog = []commoditydomain.RegisterCommodityRequest{
	{ID: "paddy-mota", Name: "Paddy Mota", Category: commoditydomain.CategoryPaddy, Unit: commoditydomain.UnitQuintal},
	{ID: "paddy-patla", Name: "Paddy Patla", Category: commoditydomain.CategoryPaddy, Unit: commoditydomain.UnitQuintal},
	{ID: "paddy-sarna", Name: "Paddy Sarna", Category: commoditydomain.CategoryPaddy, Unit: commoditydomain.UnitQuintal},
	{ID: "rice-arwa", Name: "Rice Arwa", Category: commoditydomain.CategoryRice, Unit: commoditydomain.UnitQuintal},
	{ID: "rice-usna", Name: "Rice Usna", Category: commoditydomain.CategoryRice, Unit: commoditydomain.UnitQuintal},
	{ID: "khanda", Name: "Khanda (Broken Rice)", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
	{ID: "nakkhi", Name: "Nakkhi", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
	{ID: "bhusa", Name: "Bhusa (Husk)", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
	{ID: "kodha", Name: "Kodha (Rice Bran)", Category: commoditydomain.CategoryByproduct, Unit: commoditydomain.UnitQuintal},
	{ID: "gunny-new", Name: "Gunny Bag New", Category: commoditydomain.CategoryGunny, Unit: commoditydomain.UnitBag},
	{ID: "gunny-old", Name: "Gunny Bag Old", Category: commoditydomain.CategoryGunny, Unit: commoditydomain.UnitBag},
	{ID: "gunny-plastic", Name: "Gunny Bag Plastic", Category: commoditydomain.CategoryGunny, Unit: commoditydomain.UnitBag},
	{ID: "frk", Name: "Fortified Rice Kernels", Category: commoditydomain.CategoryFRK, Unit: commoditydomain.UnitQuintal},
}

type Params struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Cfg          config.Config
	Log          *zap.Logger
	CommoditySvc commoditydomain.Service
}

func Register(p Params) {
	if !p.Cfg.SeedCatalog {
		return
	}
	log := p.Log.Named("seed")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			seeded := 0
			for _, req := range catalog {
				if _, err := p.CommoditySvc.Register(ctx, req); err != nil {
					if errors.Is(err, commoditydomain.ErrDuplicateID) {
						continue
					}
					return err
				}
				seeded++
			}
			log.Info("commodity catalog seeded", zap.Int("created", seeded))
			return nil
		},
	})
}

var Module = fx.Module("seed",
	fx.Invoke(Register),
)
