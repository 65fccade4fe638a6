package reconcile

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/panjf2000/ants/v2"
	"github.com/xanderslabs/Fundit/internal/chain"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/model"
	"gorm.io/gorm"
)

const (
	// reconcileBatchSize 每批对账的活动数
	reconcileBatchSize = 50
	// batchPause 批次间暂停，限制RPC压力
	batchPause = time.Second
	// readConcurrency 批内链上读取的并发上限
	readConcurrency = 10
)

// Result 一轮对账的汇总计数
type Result struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Matched int `json:"matched"`
	Errors  int `json:"errors"`
}

// readResult 单个活动的链上读取结果
type readResult struct {
	campaign model.CampaignModel
	onchain  *chain.OnchainCampaign
	err      error
}

// Engine 对账引擎
// 周期性比较镜像金额与链上权威值，超过阈值就以链上值覆盖并记录审计
type Engine struct {
	db            *gorm.DB
	registry      *chain.Registry
	threshold     float64
	retryAttempts int
	retryDelay    time.Duration
}

// NewEngine 创建对账引擎
func NewEngine(db *gorm.DB, registry *chain.Registry, cfg config.ReconcileConfig) *Engine {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 0.01
	}

	return &Engine{
		db:            db,
		registry:      registry,
		threshold:     threshold,
		retryAttempts: chain.DefaultRetryAttempts,
		retryDelay:    chain.DefaultRetryDelay,
	}
}

// RunPass 对所有镜像活动执行一轮离散对账
// 批内链上读取有界并发，所有写入串行；单活动失败计数后继续
func (e *Engine) RunPass(ctx context.Context) (*Result, error) {
	node := e.registry.Main()
	result := &Result{}

	for offset := 0; ; offset += reconcileBatchSize {
		var campaigns []model.CampaignModel
		err := e.db.Order("id").Limit(reconcileBatchSize).Offset(offset).Find(&campaigns).Error
		if err != nil {
			return result, fmt.Errorf("failed to load campaign batch at offset %d: %w", offset, err)
		}
		if len(campaigns) == 0 {
			break
		}

		if offset > 0 {
			time.Sleep(batchPause)
		}

		reads := e.readBatch(ctx, node, campaigns)
		for _, read := range reads {
			result.Total++
			if read.err != nil {
				result.Errors++
				logger.Error("Reconciliation read failed for campaign %d: %v", read.campaign.Id, read.err)
				continue
			}

			if err := e.heal(read.campaign, read.onchain, result); err != nil {
				result.Errors++
				logger.Error("Reconciliation write failed for campaign %d: %v", read.campaign.Id, err)
			}
		}
	}

	logger.Info("Reconciliation pass complete: total=%d updated=%d matched=%d errors=%d",
		result.Total, result.Updated, result.Matched, result.Errors)
	return result, nil
}

// readBatch 批内并发读取链上活动结构，写入前全部收齐
func (e *Engine) readBatch(ctx context.Context, node *chain.Node, campaigns []model.CampaignModel) []readResult {
	results := make([]readResult, len(campaigns))

	pool, err := ants.NewPool(readConcurrency)
	if err != nil {
		// 协程池创建失败时退化为串行读取
		logger.Warn("Failed to create reconciliation pool, falling back to sequential reads: %v", err)
		for i, campaign := range campaigns {
			onchain, readErr := e.readCampaign(ctx, node, campaign.Id)
			results[i] = readResult{campaign: campaign, onchain: onchain, err: readErr}
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, campaign := range campaigns {
		i, campaign := i, campaign
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			onchain, readErr := e.readCampaign(ctx, node, campaign.Id)
			results[i] = readResult{campaign: campaign, onchain: onchain, err: readErr}
		})
		if submitErr != nil {
			results[i] = readResult{campaign: campaign, err: submitErr}
			wg.Done()
		}
	}
	wg.Wait()

	return results
}

// readCampaign 读取单个活动的链上权威状态
func (e *Engine) readCampaign(ctx context.Context, node *chain.Node, campaignId int64) (*chain.OnchainCampaign, error) {
	callData, err := node.Contract.PackGetCampaign(big.NewInt(campaignId))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getCampaign(%d): %w", campaignId, err)
	}

	contractAddr := node.Contract.Address()
	raw, err := chain.WithRetry("getCampaign", e.retryAttempts, e.retryDelay, func() ([]byte, error) {
		return node.Client.CallContract(ctx, ethereum.CallMsg{
			To:   &contractAddr,
			Data: callData,
		}, nil)
	})
	if err != nil {
		return nil, err
	}

	return node.Contract.UnpackCampaign(raw)
}

// heal 比较并修正单个活动
// 差异超过阈值用链上值覆盖镜像并追加一条对账记录，否则只计为匹配
func (e *Engine) heal(campaign model.CampaignModel, onchain *chain.OnchainCampaign, result *Result) error {
	canonical := chain.WeiToUnit(onchain.TotalStable)
	discrepancy := math.Abs(campaign.AmountRaised - canonical)

	if discrepancy <= e.threshold {
		result.Matched++
		return nil
	}

	now := time.Now()
	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CampaignModel{}).
			Where("id = ?", campaign.Id).
			Updates(map[string]interface{}{
				"amount_raised":   canonical,
				"ended":           onchain.Ended,
				"last_reconciled": &now,
			}).Error; err != nil {
			return fmt.Errorf("failed to heal campaign %d: %w", campaign.Id, err)
		}

		logEntry := &model.ReconciliationLogModel{
			CampaignId:    campaign.Id,
			PreviousValue: campaign.AmountRaised,
			NewValue:      canonical,
			Discrepancy:   discrepancy,
		}
		if err := tx.Create(logEntry).Error; err != nil {
			return fmt.Errorf("failed to write reconciliation log for campaign %d: %w", campaign.Id, err)
		}

		result.Updated++
		logger.Info("Healed campaign %d: %f -> %f (discrepancy %f)",
			campaign.Id, campaign.AmountRaised, canonical, discrepancy)
		return nil
	})
}
