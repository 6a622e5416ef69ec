package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/graindesk/millbook/internal/balance"
	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	"github.com/graindesk/millbook/internal/commodity"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
	"github.com/graindesk/millbook/internal/config"
	"github.com/graindesk/millbook/internal/deliveryorder"
	dodomain "github.com/graindesk/millbook/internal/deliveryorder/domain"
	"github.com/graindesk/millbook/internal/ledger"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	"github.com/graindesk/millbook/internal/milling"
	millingdomain "github.com/graindesk/millbook/internal/milling/domain"
	"github.com/graindesk/millbook/internal/observability"
	obsmiddleware "github.com/graindesk/millbook/internal/observability/logger"
	obsmetrics "github.com/graindesk/millbook/internal/observability/metrics"
	obstracing "github.com/graindesk/millbook/internal/observability/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	commodity.Module,
	ledger.Module,
	balance.Module,
	deliveryorder.Module,
	milling.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	commoditySvc commoditydomain.Service
	ledgerSvc    ledgerdomain.Service
	balanceSvc   balancedomain.Service
	doSvc        dodomain.Service
	millingSvc   millingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	CommoditySvc commoditydomain.Service
	LedgerSvc    ledgerdomain.Service
	BalanceSvc   balancedomain.Service
	DOSvc        dodomain.Service
	MillingSvc   millingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		commoditySvc: p.CommoditySvc,
		ledgerSvc:    p.LedgerSvc,
		balanceSvc:   p.BalanceSvc,
		doSvc:        p.DOSvc,
		millingSvc:   p.MillingSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Commodities --------
	v1.GET("/commodities", s.ListCommodities)
	v1.POST("/commodities", s.RegisterCommodity)
	v1.GET("/commodities/:id", s.GetCommodityByID)

	// Everything below operates on one mill's books.
	mill := v1.Group("", s.MillContext())

	// -------- Transactions --------
	mill.POST("/transactions", s.RecordTransaction)
	mill.POST("/transactions/batch", s.RecordTransactionBatch)

	// -------- Ledger --------
	mill.GET("/ledger", s.ListLedgerEntries)

	// -------- Balances --------
	mill.GET("/balances", s.ListBalances)
	mill.GET("/balances/:commodity_id", s.GetBalance)
	mill.GET("/movements/:commodity_id", s.GetMovements)

	// -------- Delivery Orders --------
	mill.POST("/delivery-orders", s.RegisterDeliveryOrder)
	mill.GET("/delivery-orders", s.ListDeliveryOrders)
	mill.GET("/delivery-orders/:do_number", s.GetDeliveryOrder)
	mill.GET("/delivery-orders/:do_number/remaining", s.GetDeliveryOrderRemaining)
	mill.POST("/delivery-orders/:do_number/lifts", s.RecordDeliveryOrderLift)
	mill.POST("/delivery-orders/:do_number/cancel", s.CancelDeliveryOrder)

	// -------- Milling --------
	mill.POST("/milling/validate", s.ValidateMillingBatch)
	mill.POST("/milling/commit", s.CommitMillingBatch)
}
