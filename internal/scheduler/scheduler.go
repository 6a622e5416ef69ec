package scheduler

import (
	"context"
	"time"

	balancedomain "github.com/graindesk/millbook/internal/balance/domain"
	"github.com/graindesk/millbook/internal/clock"
	"github.com/graindesk/millbook/internal/config"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const runTimeout = 5 * time.Minute

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Cfg        config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	Clock      clock.Clock
	LedgerRepo ledgerdomain.Repository
	BalanceSvc balancedomain.Service
}

// CheckpointJob periodically rebuilds monthly balance checkpoints for every
// mill with ledger history. Checkpoints are a cache; the job only trades
// query latency, never correctness, so a skipped or failed run is harmless.
type CheckpointJob struct {
	interval   time.Duration
	log        *zap.Logger
	db         *gorm.DB
	clock      clock.Clock
	ledgerRepo ledgerdomain.Repository
	balanceSvc balancedomain.Service

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCheckpointJob(p Params) *CheckpointJob {
	job := &CheckpointJob{
		interval:   time.Duration(p.Cfg.CheckpointIntervalMinutes) * time.Minute,
		log:        p.Log.Named("scheduler.checkpoint"),
		db:         p.DB,
		clock:      p.Clock,
		ledgerRepo: p.LedgerRepo,
		balanceSvc: p.BalanceSvc,
		done:       make(chan struct{}),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if job.interval <= 0 {
				job.log.Info("checkpoint job disabled")
				close(job.done)
				return nil
			}
			ctx, cancel := context.WithCancel(context.Background())
			job.cancel = cancel
			go job.run(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if job.cancel != nil {
				job.cancel()
			}
			select {
			case <-job.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return job
}

func (j *CheckpointJob) run(ctx context.Context) {
	defer close(j.done)

	j.log.Info("checkpoint job started", zap.Duration("interval", j.interval))
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("checkpoint job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CheckpointJob) runOnce(ctx context.Context) {
	runID := ulid.Make().String()
	log := j.log.With(zap.String("run_id", runID))

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	mills, err := j.ledgerRepo.DistinctMills(ctx, j.db)
	if err != nil {
		log.Error("list mills failed", zap.Error(err))
		return
	}

	started := j.clock.Now()
	for _, millID := range mills {
		if err := j.balanceSvc.RebuildCheckpoints(ctx, millID); err != nil {
			log.Error("checkpoint rebuild failed",
				zap.String("mill_id", millID.String()),
				zap.Error(err),
			)
			// Mills are independent; one failure does not stop the rest.
			continue
		}
	}

	log.Debug("checkpoint run finished",
		zap.Int("mills", len(mills)),
		zap.Duration("took", j.clock.Now().Sub(started)),
	)
}

var Module = fx.Module("scheduler",
	fx.Invoke(NewCheckpointJob),
)
