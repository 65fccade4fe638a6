package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/xanderslabs/Fundit/internal/chain"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// campaignReadBatchSize getCampaign 回读分批大小
const campaignReadBatchSize = 20

// Indexer 事件索引器
// 对一条链的一个区块区间抓取三类事件并写入镜像表
// 三类事件各自独立事务，一类失败只回滚该类，不影响已提交的其他类
type Indexer struct {
	db            *gorm.DB
	retryAttempts int
	retryDelay    time.Duration
}

// NewIndexer 创建事件索引器
func NewIndexer(db *gorm.DB, cfg config.IndexerConfig) *Indexer {
	retryDelay := time.Duration(cfg.RetryDelay) * time.Second
	if retryDelay == 0 {
		retryDelay = chain.DefaultRetryDelay
	}

	return &Indexer{
		db:            db,
		retryAttempts: cfg.RetryCount,
		retryDelay:    retryDelay,
	}
}

// IndexRange 索引闭区间 [fromBlock, toBlock]
// 业务事件只存在于主链，副链只通过合约消息层回传总额，这里无事可做
func (ix *Indexer) IndexRange(ctx context.Context, node *chain.Node, fromBlock, toBlock int64) error {
	if !node.IsMain() {
		return nil
	}

	logger.Debug("Indexing chain %s blocks %d-%d", node.Name, fromBlock, toBlock)

	var errs []error
	if err := ix.indexLifecycle(ctx, node, fromBlock, toBlock); err != nil {
		logger.Error("Lifecycle category failed for blocks %d-%d: %v", fromBlock, toBlock, err)
		errs = append(errs, err)
	}
	if err := ix.indexDonations(ctx, node, fromBlock, toBlock); err != nil {
		logger.Error("Donation category failed for blocks %d-%d: %v", fromBlock, toBlock, err)
		errs = append(errs, err)
	}
	if err := ix.indexWithdrawals(ctx, node, fromBlock, toBlock); err != nil {
		logger.Error("Withdrawal category failed for blocks %d-%d: %v", fromBlock, toBlock, err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// fetchLogs 按主题抓取区间日志
func (ix *Indexer) fetchLogs(ctx context.Context, node *chain.Node, topics []common.Hash, fromBlock, toBlock int64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: []common.Address{node.Contract.Address()},
		Topics:    [][]common.Hash{topics},
	}

	return chain.WithRetry("FilterLogs", ix.retryAttempts, ix.retryDelay, func() ([]types.Log, error) {
		return node.Client.FilterLogs(ctx, query)
	})
}

// indexLifecycle 处理活动生命周期事件（created/edited/ended）
// created/edited 需要回读链上活动结构补齐事件载荷里没有的字段
// 写入使用冲突容忍的upsert，重放同一事件是安全的
func (ix *Indexer) indexLifecycle(ctx context.Context, node *chain.Node, fromBlock, toBlock int64) error {
	logs, err := ix.fetchLogs(ctx, node, node.Contract.LifecycleTopics(), fromBlock, toBlock)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	// 收集需要回读的活动ID（去重）和结束事件
	readBack := make(map[int64]types.Log)
	var endedEvents []*chain.CampaignEndedEvent

	for _, lg := range logs {
		parsed, err := node.Contract.ParseEvent(lg)
		if err != nil {
			logger.Warn("Failed to parse lifecycle event at block %d: %v", lg.BlockNumber, err)
			continue
		}

		switch ev := parsed.(type) {
		case *chain.CampaignCreatedEvent:
			readBack[ev.CampaignId.Int64()] = lg
		case *chain.CampaignEditedEvent:
			readBack[ev.CampaignId.Int64()] = lg
		case *chain.CampaignEndedEvent:
			endedEvents = append(endedEvents, ev)
		}
	}

	// 分批回读链上活动结构
	campaigns, err := ix.readCampaigns(ctx, node, readBack)
	if err != nil {
		return err
	}

	return ix.db.Transaction(func(tx *gorm.DB) error {
		for id, onchain := range campaigns {
			raw := readBack[id]
			record := &model.CampaignModel{
				Id:          id,
				Name:        onchain.Name,
				Target:      chain.WeiToUnit(onchain.Target),
				Description: onchain.Description,
				SocialLink:  onchain.SocialLink,
				ImageId:     onchain.ImageId,
				Creator:     onchain.Creator.Hex(),
				Ended:       onchain.Ended,
				Chain:       node.Name,
				TxHash:      raw.TxHash.Hex(),
			}

			// amount_raised 归捐赠事件和对账任务所有，冲突时不覆盖
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "target", "description", "social_link", "image_id",
					"creator", "ended", "updated_at",
				}),
			}).Create(record).Error; err != nil {
				return fmt.Errorf("failed to upsert campaign %d: %w", id, err)
			}

			if err := ix.audit(tx, "campaign_upserted", id, node.Name, raw.TxHash.Hex(),
				fmt.Sprintf("name=%s creator=%s", onchain.Name, onchain.Creator.Hex())); err != nil {
				return err
			}
		}

		for _, ev := range endedEvents {
			id := ev.CampaignId.Int64()
			finalValue := chain.WeiToUnit(ev.FinalStableValue)

			// 绝对值写入，重放无副作用
			if err := tx.Model(&model.CampaignModel{}).
				Where("id = ?", id).
				Updates(map[string]interface{}{
					"ended":         true,
					"amount_raised": finalValue,
				}).Error; err != nil {
				return fmt.Errorf("failed to mark campaign %d ended: %w", id, err)
			}

			if err := ix.audit(tx, "campaign_ended", id, node.Name, ev.Raw.TxHash.Hex(),
				fmt.Sprintf("final_stable_value=%f", finalValue)); err != nil {
				return err
			}
		}

		return nil
	})
}

// readCampaigns 分批回读链上活动结构，每批20个
func (ix *Indexer) readCampaigns(ctx context.Context, node *chain.Node, ids map[int64]types.Log) (map[int64]*chain.OnchainCampaign, error) {
	idList := make([]int64, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}

	result := make(map[int64]*chain.OnchainCampaign, len(idList))
	contractAddr := node.Contract.Address()

	for start := 0; start < len(idList); start += campaignReadBatchSize {
		end := start + campaignReadBatchSize
		if end > len(idList) {
			end = len(idList)
		}

		for _, id := range idList[start:end] {
			callData, err := node.Contract.PackGetCampaign(big.NewInt(id))
			if err != nil {
				return nil, fmt.Errorf("failed to pack getCampaign(%d): %w", id, err)
			}

			raw, err := chain.WithRetry("getCampaign", ix.retryAttempts, ix.retryDelay, func() ([]byte, error) {
				return node.Client.CallContract(ctx, ethereum.CallMsg{
					To:   &contractAddr,
					Data: callData,
				}, nil)
			})
			if err != nil {
				return nil, err
			}

			campaign, err := node.Contract.UnpackCampaign(raw)
			if err != nil {
				return nil, fmt.Errorf("campaign %d: %w", id, err)
			}
			result[id] = campaign
		}
	}

	return result, nil
}

// indexDonations 处理捐赠事件
// amount_raised 为增量更新，重放同一捐赠事件会重复累加（已知风险，未静默修复）
func (ix *Indexer) indexDonations(ctx context.Context, node *chain.Node, fromBlock, toBlock int64) error {
	logs, err := ix.fetchLogs(ctx, node, node.Contract.DonationTopics(), fromBlock, toBlock)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	return ix.db.Transaction(func(tx *gorm.DB) error {
		for _, lg := range logs {
			parsed, err := node.Contract.ParseEvent(lg)
			if err != nil {
				logger.Warn("Failed to parse donation event at block %d: %v", lg.BlockNumber, err)
				continue
			}
			ev, ok := parsed.(*chain.DonationMadeEvent)
			if !ok {
				continue
			}

			campaignId := ev.CampaignId.Int64()
			amount := chain.WeiToUnit(ev.NetUSDValue)

			donation := &model.DonationModel{
				CampaignId: campaignId,
				Donor:      ev.Donor.Hex(),
				Amount:     amount,
				Chain:      node.Name,
				TxHash:     lg.TxHash.Hex(),
				BlockNum:   int64(lg.BlockNumber),
			}
			if err := tx.Create(donation).Error; err != nil {
				return fmt.Errorf("failed to create donation record: %w", err)
			}

			if err := tx.Model(&model.CampaignModel{}).
				Where("id = ?", campaignId).
				UpdateColumn("amount_raised", gorm.Expr("amount_raised + ?", amount)).Error; err != nil {
				return fmt.Errorf("failed to increment amount_raised for campaign %d: %w", campaignId, err)
			}

			if err := ix.audit(tx, "donation_made", campaignId, node.Name, lg.TxHash.Hex(),
				fmt.Sprintf("donor=%s amount=%f", ev.Donor.Hex(), amount)); err != nil {
				return err
			}
		}
		return nil
	})
}

// indexWithdrawals 处理提现事件
// Requested 插入（按请求ID冲突忽略），Processed 单向流转且只流转一次
func (ix *Indexer) indexWithdrawals(ctx context.Context, node *chain.Node, fromBlock, toBlock int64) error {
	logs, err := ix.fetchLogs(ctx, node, node.Contract.WithdrawalTopics(), fromBlock, toBlock)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	return ix.db.Transaction(func(tx *gorm.DB) error {
		for _, lg := range logs {
			parsed, err := node.Contract.ParseEvent(lg)
			if err != nil {
				logger.Warn("Failed to parse withdrawal event at block %d: %v", lg.BlockNumber, err)
				continue
			}
			ev, ok := parsed.(*chain.WithdrawalEvent)
			if !ok {
				continue
			}

			if ev.Processed {
				if err := ix.applyWithdrawalProcessed(tx, node, ev); err != nil {
					return err
				}
			} else {
				if err := ix.applyWithdrawalRequested(tx, node, ev); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// applyWithdrawalRequested 登记提现请求
func (ix *Indexer) applyWithdrawalRequested(tx *gorm.DB, node *chain.Node, ev *chain.WithdrawalEvent) error {
	record := &model.WithdrawalModel{
		RequestId:       ev.RequestId.Int64(),
		Requester:       ev.Requester.Hex(),
		Amount:          chain.WeiToUnit(ev.Amount),
		Token:           ev.Token.Hex(),
		TargetChain:     ev.TargetChainId.Int64(),
		Status:          model.WithdrawalStatusRequested,
		RequestedTxHash: ev.Raw.TxHash.Hex(),
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create withdrawal request %d: %w", record.RequestId, err)
	}

	return ix.audit(tx, "withdrawal_requested", 0, node.Name, ev.Raw.TxHash.Hex(),
		fmt.Sprintf("request_id=%d requester=%s", record.RequestId, record.Requester))
}

// applyWithdrawalProcessed 将提现请求流转为已处理
// 条件更新保证 Requested -> Processed 恰好发生一次
func (ix *Indexer) applyWithdrawalProcessed(tx *gorm.DB, node *chain.Node, ev *chain.WithdrawalEvent) error {
	requestId := ev.RequestId.Int64()
	now := time.Now()

	result := tx.Model(&model.WithdrawalModel{}).
		Where("request_id = ? AND status = ?", requestId, model.WithdrawalStatusRequested).
		Updates(map[string]interface{}{
			"status":            model.WithdrawalStatusProcessed,
			"processed_tx_hash": ev.Raw.TxHash.Hex(),
			"processed_at":      &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to process withdrawal %d: %w", requestId, result.Error)
	}
	if result.RowsAffected == 0 {
		logger.Warn("WithdrawalProcessed for unknown or already processed request %d", requestId)
		return nil
	}

	return ix.audit(tx, "withdrawal_processed", 0, node.Name, ev.Raw.TxHash.Hex(),
		fmt.Sprintf("request_id=%d", requestId))
}

// audit 写入变更审计记录
func (ix *Indexer) audit(tx *gorm.DB, action string, campaignId int64, chainName, txHash, detail string) error {
	record := &model.TransactionModel{
		Action:     action,
		CampaignId: campaignId,
		Chain:      chainName,
		TxHash:     txHash,
		Detail:     detail,
	}
	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}
