package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/reconcile"
)

// ReconcileJob 链上对账任务
type ReconcileJob struct {
	engine   *reconcile.Engine
	interval time.Duration
}

// NewReconcileJob 创建对账任务
func NewReconcileJob(engine *reconcile.Engine, cfg config.ReconcileConfig) *ReconcileJob {
	return &ReconcileJob{
		engine:   engine,
		interval: time.Duration(cfg.Interval) * time.Second,
	}
}

func (j *ReconcileJob) GetName() string {
	return "reconcile_job"
}

func (j *ReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 对主链所有活动执行一轮对账
func (j *ReconcileJob) Execute() {
	start := time.Now()
	result, err := j.engine.RunPass(context.Background())
	if err != nil {
		logger.Error("Reconcile job failed: %v", err)
		return
	}
	logger.Info("Reconcile job finished, total: %d, updated: %d, matched: %d, errors: %d, cost: %v",
		result.Total, result.Updated, result.Matched, result.Errors, time.Since(start))
}
