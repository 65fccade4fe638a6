package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xanderslabs/Fundit/internal/chain"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// realtimeGap 落后不超过该值视为实时模式
	realtimeGap = 200
	// realtimeBatch 实时模式批量大小
	realtimeBatch = 100
	// catchupBatch 追赶模式批量大小
	catchupBatch = 5000
	// jumpAheadGap 落后超过该值触发跳块，放弃历史换取活性
	jumpAheadGap = 500_000
	// jumpAheadWindow 跳块后保留的回看窗口
	jumpAheadWindow = 100_000
	// maxChunkSpan 单次日志抓取的最大区间，超出按此切片顺序处理
	maxChunkSpan = 10_000
	// firstIndexWindow 首次索引的回看窗口
	firstIndexWindow = 100_000
)

// ErrNoCursor 链尚无索引游标
var ErrNoCursor = errors.New("no indexer cursor")

// ChainStatus 单链同步状态
type ChainStatus struct {
	Chain            string `json:"chain"`
	CurrentBlock     int64  `json:"currentBlock"`
	LastIndexedBlock int64  `json:"lastIndexedBlock"`
	BlocksRemaining  int64  `json:"blocksRemaining"`
	SyncStatus       string `json:"syncStatus"`
	IsRealtime       bool   `json:"isRealtime"`
}

// Scheduler 区块区间调度器
// 每轮对每条链决定下一个索引区间，驱动事件索引器
// 链间串行处理：amount_raised 的增量更新依赖每活动行的写串行化
type Scheduler struct {
	registry      *chain.Registry
	db            *gorm.DB
	indexer       *Indexer
	retryAttempts int
	retryDelay    time.Duration
}

// NewScheduler 创建区块区间调度器
func NewScheduler(registry *chain.Registry, db *gorm.DB, cfg config.IndexerConfig) *Scheduler {
	retryDelay := time.Duration(cfg.RetryDelay) * time.Second
	if retryDelay == 0 {
		retryDelay = chain.DefaultRetryDelay
	}

	return &Scheduler{
		registry:      registry,
		db:            db,
		indexer:       NewIndexer(db, cfg),
		retryAttempts: cfg.RetryCount,
		retryDelay:    retryDelay,
	}
}

// RunOnce 执行一轮调度
// 单链失败只影响该链本轮，其余链继续
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, node := range s.registry.Nodes() {
		if err := s.runChain(ctx, node); err != nil {
			logger.Error("Indexing pass failed for chain %s: %v", node.Name, err)
		}
	}
}

// runChain 对一条链执行一轮索引
func (s *Scheduler) runChain(ctx context.Context, node *chain.Node) error {
	head, err := chain.WithRetry("BlockNumber", s.retryAttempts, s.retryDelay, func() (uint64, error) {
		return node.Client.BlockNumber(ctx)
	})
	if err != nil {
		return err
	}
	headBlock := int64(head)

	cursor, err := s.loadCursor(node.Name)
	if errors.Is(err, ErrNoCursor) {
		// 首次索引从回看窗口起点开始
		cursor = maxInt64(1, headBlock-firstIndexWindow) - 1
		logger.Info("Chain %s: first indexing run, starting from block %d", node.Name, cursor+1)
	} else if err != nil {
		return err
	}

	gap := headBlock - cursor
	if gap <= 0 {
		logger.Debug("Chain %s: cursor %d already at head %d", node.Name, cursor, headBlock)
		return nil
	}

	// 灾难级落后：立即重置游标放弃未索引区间，恢复活性
	if gap > jumpAheadGap {
		newCursor := maxInt64(1, headBlock-jumpAheadWindow) - 1
		logger.Warn("Chain %s: gap %d exceeds %d, jumping ahead from cursor %d to %d",
			node.Name, gap, jumpAheadGap, cursor, newCursor)
		if err := s.saveCursor(node.Name, newCursor); err != nil {
			return err
		}
		cursor = newCursor
		gap = headBlock - cursor
	}

	batchSize := int64(catchupBatch)
	if gap <= realtimeGap {
		batchSize = realtimeBatch
	}

	fromBlock := cursor + 1
	toBlock := minInt64(headBlock, fromBlock+batchSize-1)

	// 超长区间按 maxChunkSpan 顺序切片，游标在整个区间完成后统一推进
	// 中途崩溃会导致已提交切片被整段重放
	for chunkFrom := fromBlock; chunkFrom <= toBlock; chunkFrom += maxChunkSpan {
		chunkTo := minInt64(toBlock, chunkFrom+maxChunkSpan-1)
		if err := s.indexer.IndexRange(ctx, node, chunkFrom, chunkTo); err != nil {
			return fmt.Errorf("blocks %d-%d: %w", chunkFrom, chunkTo, err)
		}
	}

	if err := s.saveCursor(node.Name, toBlock); err != nil {
		return err
	}

	logger.Info("Chain %s: indexed blocks %d-%d (head %d, remaining %d)",
		node.Name, fromBlock, toBlock, headBlock, headBlock-toBlock)
	return nil
}

// Status 返回每条链的同步状态
func (s *Scheduler) Status(ctx context.Context) []ChainStatus {
	var statuses []ChainStatus

	for _, node := range s.registry.Nodes() {
		status := ChainStatus{Chain: node.Name, SyncStatus: "unknown"}

		head, err := chain.WithRetry("BlockNumber", s.retryAttempts, s.retryDelay, func() (uint64, error) {
			return node.Client.BlockNumber(ctx)
		})
		if err != nil {
			logger.Error("Failed to get head for chain %s: %v", node.Name, err)
			statuses = append(statuses, status)
			continue
		}
		status.CurrentBlock = int64(head)

		cursor, err := s.loadCursor(node.Name)
		if err == nil {
			status.LastIndexedBlock = cursor
		}

		status.BlocksRemaining = status.CurrentBlock - status.LastIndexedBlock
		if status.BlocksRemaining < 0 {
			status.BlocksRemaining = 0
		}
		status.IsRealtime = status.BlocksRemaining <= realtimeGap
		if status.IsRealtime {
			status.SyncStatus = "realtime"
		} else {
			status.SyncStatus = "catching_up"
		}

		statuses = append(statuses, status)
	}

	return statuses
}

// loadCursor 读取链的索引游标
func (s *Scheduler) loadCursor(chainName string) (int64, error) {
	var state model.IndexerStateModel
	err := s.db.Where("chain = ?", chainName).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNoCursor
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load cursor for chain %s: %w", chainName, err)
	}
	return state.LastIndexedBlock, nil
}

// saveCursor 更新链的索引游标，每轮最多一次
func (s *Scheduler) saveCursor(chainName string, blockNum int64) error {
	state := &model.IndexerStateModel{
		Chain:            chainName,
		LastIndexedBlock: blockNum,
		UpdatedAt:        time.Now(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_indexed_block", "updated_at"}),
	}).Create(state).Error
	if err != nil {
		return fmt.Errorf("failed to save cursor for chain %s: %w", chainName, err)
	}
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
