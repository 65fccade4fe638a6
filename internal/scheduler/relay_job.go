package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/relay"
)

// RelayJob 直捐转发任务
type RelayJob struct {
	relay    *relay.Relay
	interval time.Duration
}

// NewRelayJob 创建转发任务
func NewRelayJob(r *relay.Relay, cfg config.RelayConfig) *RelayJob {
	return &RelayJob{
		relay:    r,
		interval: time.Duration(cfg.Interval) * time.Second,
	}
}

func (j *RelayJob) GetName() string {
	return "relay_job"
}

func (j *RelayJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 扫描所有活动钱包并推进转发状态机
func (j *RelayJob) Execute() {
	start := time.Now()
	j.relay.Tick(context.Background())
	logger.Info("Relay job finished, cost: %v", time.Since(start))
}
