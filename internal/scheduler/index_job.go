package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/indexer"
	"github.com/xanderslabs/Fundit/internal/logger"
)

// IndexJob 区块事件索引任务
type IndexJob struct {
	scheduler *indexer.Scheduler
	interval  time.Duration
}

// NewIndexJob 创建索引任务
func NewIndexJob(scheduler *indexer.Scheduler, cfg config.IndexerConfig) *IndexJob {
	return &IndexJob{
		scheduler: scheduler,
		interval:  time.Duration(cfg.Interval) * time.Second,
	}
}

func (j *IndexJob) GetName() string {
	return "index_job"
}

func (j *IndexJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行一轮全链索引
func (j *IndexJob) Execute() {
	start := time.Now()
	j.scheduler.RunOnce(context.Background())
	logger.Info("Index job finished, cost: %v", time.Since(start))
}
