package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/xanderslabs/Fundit/internal/chain"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/indexer"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/reconcile"
	"github.com/xanderslabs/Fundit/internal/relay"
	"gorm.io/gorm"
)

// Job 定时任务接口
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
}

// NewManager 创建任务管理器并注册所有任务
func NewManager(db *gorm.DB, registry *chain.Registry, blockScheduler *indexer.Scheduler, cfg *config.Config) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	m := &Manager{scheduler: s}

	jobs := []Job{
		NewIndexJob(blockScheduler, cfg.Indexer),
		NewReconcileJob(reconcile.NewEngine(db, registry, cfg.Reconcile), cfg.Reconcile),
		NewRelayJob(relay.NewRelay(db, registry, cfg.Relay), cfg.Relay),
	}

	for _, job := range jobs {
		m.register(job)
	}

	return m, nil
}

// register 注册单个任务，singleton模式避免同一任务重叠执行
func (m *Manager) register(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Start 启动任务管理器
func (m *Manager) Start() {
	m.scheduler.Start()
	logger.Info("Task manager started")
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
