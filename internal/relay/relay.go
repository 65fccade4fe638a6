package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/xanderslabs/Fundit/internal/chain"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/model"
	"gorm.io/gorm"
)

const (
	// maxCheckCount 连续未确认轮询次数上限，超过后按卡住交易处理
	maxCheckCount = 15
	// stuckFeeBoostPct 替换交易的费用提升到当前估算的150%
	stuckFeeBoostPct = 150
	// submitFeeBoostPct 提交交易的费用提升到当前估算的120%
	submitFeeBoostPct = 120
	// gasLimitMarginPct gas估算的安全余量30%
	gasLimitMarginPct = 130
	// costBufferPct 成本估算再加50%缓冲作为gas预留
	costBufferPct = 150
	// selfTransferGas 零值自转账的固定gas
	selfTransferGas = 21000
)

// Relay 直捐中继
// 固定间隔轮询所有活动钱包：有pending先处理pending（每钱包单流），
// 否则余额达到阈值就创建pending并提交中继交易
type Relay struct {
	db            *gorm.DB
	registry      *chain.Registry
	cfg           config.RelayConfig
	retryAttempts int
	retryDelay    time.Duration
}

// NewRelay 创建直捐中继
func NewRelay(db *gorm.DB, registry *chain.Registry, cfg config.RelayConfig) *Relay {
	return &Relay{
		db:            db,
		registry:      registry,
		cfg:           cfg,
		retryAttempts: chain.DefaultRetryAttempts,
		retryDelay:    chain.DefaultRetryDelay,
	}
}

// Tick 执行一轮钱包扫描，钱包间串行以限制RPC压力
func (r *Relay) Tick(ctx context.Context) {
	node := r.registry.Main()

	var wallets []model.CampaignWalletModel
	if err := r.db.Find(&wallets).Error; err != nil {
		logger.Error("Failed to load campaign wallets: %v", err)
		return
	}

	for _, wallet := range wallets {
		if err := r.processWallet(ctx, node, wallet); err != nil {
			logger.Error("Relay failed for wallet %s (campaign %d): %v",
				wallet.WalletAddress, wallet.CampaignId, err)
		}
	}
}

// processWallet 处理单个钱包
// 先处理已存在的pending行，保证每钱包同一时间只有一条在途中继
func (r *Relay) processWallet(ctx context.Context, node *chain.Node, wallet model.CampaignWalletModel) error {
	var pending model.DirectDonationModel
	err := r.db.Where("wallet_address = ? AND status = ?",
		wallet.WalletAddress, model.DirectDonationStatusPending).First(&pending).Error

	if err == nil {
		return r.resolvePending(ctx, node, wallet, &pending)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to query pending donation: %w", err)
	}

	// 无pending：检查余额是否达到中继阈值
	walletAddr := common.HexToAddress(wallet.WalletAddress)
	balance, err := chain.WithRetry("BalanceAt", r.retryAttempts, r.retryDelay, func() (*big.Int, error) {
		return node.Client.BalanceAt(ctx, walletAddr, nil)
	})
	if err != nil {
		return err
	}

	minWei := chain.UnitToWei(r.cfg.MinDonation)
	if balance.Cmp(minWei) < 0 {
		return nil
	}

	record := &model.DirectDonationModel{
		CampaignId:    wallet.CampaignId,
		WalletAddress: wallet.WalletAddress,
		Amount:        chain.WeiToUnit(balance),
		Status:        model.DirectDonationStatusPending,
	}
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create direct donation record: %w", err)
	}

	logger.Info("Wallet %s funded with %f, relaying to campaign %d",
		wallet.WalletAddress, record.Amount, wallet.CampaignId)
	return r.submit(ctx, node, wallet, record)
}

// resolvePending 处理pending行
// 无哈希直接提交；有哈希查回执：有回执按状态终结，无回执累计计数，
// 计满后下一轮用同nonce高费用的零值自转账把原交易挤出待确认池
func (r *Relay) resolvePending(ctx context.Context, node *chain.Node, wallet model.CampaignWalletModel, record *model.DirectDonationModel) error {
	if record.ContractTxHash == "" {
		return r.submit(ctx, node, wallet, record)
	}

	receipt, err := node.Client.TransactionReceipt(ctx, common.HexToHash(record.ContractTxHash))
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("failed to fetch receipt for %s: %w", record.ContractTxHash, err)
	}

	if receipt != nil {
		// 回执已出，按执行结果终结
		status := model.DirectDonationStatusCompleted
		if receipt.Status != types.ReceiptStatusSuccessful {
			status = model.DirectDonationStatusFailed
		}
		logger.Info("Relay tx %s for campaign %d finished: %s",
			record.ContractTxHash, record.CampaignId, status)
		return r.finish(record, status)
	}

	// 回执未出
	if record.CheckCount >= maxCheckCount {
		return r.replaceStuck(ctx, node, wallet, record)
	}

	record.CheckCount++
	if err := r.db.Model(record).UpdateColumn("check_count", record.CheckCount).Error; err != nil {
		return fmt.Errorf("failed to bump check count: %w", err)
	}
	logger.Debug("Relay tx %s unconfirmed (check %d/%d)",
		record.ContractTxHash, record.CheckCount, maxCheckCount)
	return nil
}

// replaceStuck 用同nonce的零值自转账替换卡住的交易
// 费用提升到当前网络估算的150%，把原交易从待确认池挤出
func (r *Relay) replaceStuck(ctx context.Context, node *chain.Node, wallet model.CampaignWalletModel, record *model.DirectDonationModel) error {
	logger.Warn("Relay tx %s stuck after %d checks, replacing at nonce %d",
		record.ContractTxHash, record.CheckCount, record.TxNonce)

	key, err := crypto.HexToECDSA(wallet.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse wallet key: %w", err)
	}

	tipCap, feeCap, err := r.feeData(ctx, node, stuckFeeBoostPct)
	if err != nil {
		return err
	}

	walletAddr := common.HexToAddress(wallet.WalletAddress)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(node.Config.ChainId),
		Nonce:     record.TxNonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       selfTransferGas,
		To:        &walletAddr,
		Value:     big.NewInt(0),
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(node.Config.ChainId)), key)
	if err != nil {
		return fmt.Errorf("failed to sign replacement tx: %w", err)
	}

	if err := node.Client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to send replacement tx: %w", err)
	}

	// 记录新哈希并重置计数，后续轮询追踪替换交易
	updates := map[string]interface{}{
		"contract_tx_hash": signed.Hash().Hex(),
		"check_count":      0,
	}
	if err := r.db.Model(record).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record replacement tx: %w", err)
	}

	logger.Info("Replaced stuck tx at nonce %d with %s", record.TxNonce, signed.Hash().Hex())
	return nil
}

// submit 提交中继交易
// 提交路径上的任何失败都把记录置为终态failed，不自动重试
func (r *Relay) submit(ctx context.Context, node *chain.Node, wallet model.CampaignWalletModel, record *model.DirectDonationModel) error {
	if err := r.doSubmit(ctx, node, wallet, record); err != nil {
		if failErr := r.finish(record, model.DirectDonationStatusFailed); failErr != nil {
			logger.Error("Failed to mark donation %d failed: %v", record.Id, failErr)
		}
		return err
	}
	return nil
}

func (r *Relay) doSubmit(ctx context.Context, node *chain.Node, wallet model.CampaignWalletModel, record *model.DirectDonationModel) error {
	walletAddr := common.HexToAddress(wallet.WalletAddress)

	// 重新确认实时余额高于下限
	balance, err := chain.WithRetry("BalanceAt", r.retryAttempts, r.retryDelay, func() (*big.Int, error) {
		return node.Client.BalanceAt(ctx, walletAddr, nil)
	})
	if err != nil {
		return err
	}
	minWei := chain.UnitToWei(r.cfg.MinDonation)
	if balance.Cmp(minWei) < 0 {
		return fmt.Errorf("wallet %s balance below floor at submission time", wallet.WalletAddress)
	}

	key, err := crypto.HexToECDSA(wallet.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse wallet key: %w", err)
	}

	tipCap, feeCap, err := r.feeData(ctx, node, submitFeeBoostPct)
	if err != nil {
		return err
	}

	// 小额探测估算gas，再加30%安全余量
	contractAddr := node.Contract.Address()
	probeData, err := node.Contract.PackDonate(big.NewInt(record.CampaignId), common.Address{}, big.NewInt(1))
	if err != nil {
		return fmt.Errorf("failed to pack probe donate call: %w", err)
	}

	gasEstimate, err := chain.WithRetry("EstimateGas", r.retryAttempts, r.retryDelay, func() (uint64, error) {
		return node.Client.EstimateGas(ctx, ethereum.CallMsg{
			From:  walletAddr,
			To:    &contractAddr,
			Value: big.NewInt(1),
			Data:  probeData,
		})
	})
	if err != nil {
		return err
	}
	gasLimit := gasEstimate * gasLimitMarginPct / 100

	// 成本估算加50%缓冲作为gas预留，且不低于配置下限
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), feeCap)
	reserve := boostPct(cost, costBufferPct)
	minReserve := chain.UnitToWei(r.cfg.MinGasReserve)
	if reserve.Cmp(minReserve) < 0 {
		reserve = minReserve
	}

	value := new(big.Int).Sub(balance, reserve)
	if value.Sign() <= 0 {
		return fmt.Errorf("wallet %s balance %s cannot cover gas reserve %s",
			wallet.WalletAddress, balance, reserve)
	}

	// 显式取nonce，不让节点自动分配，避免与替换路径竞争
	nonce, err := chain.WithRetry("PendingNonceAt", r.retryAttempts, r.retryDelay, func() (uint64, error) {
		return node.Client.PendingNonceAt(ctx, walletAddr)
	})
	if err != nil {
		return err
	}

	donateData, err := node.Contract.PackDonate(big.NewInt(record.CampaignId), common.Address{}, value)
	if err != nil {
		return fmt.Errorf("failed to pack donate call: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(node.Config.ChainId),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &contractAddr,
		Value:     value,
		Data:      donateData,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(node.Config.ChainId)), key)
	if err != nil {
		return fmt.Errorf("failed to sign relay tx: %w", err)
	}

	if err := node.Client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to send relay tx: %w", err)
	}

	updates := map[string]interface{}{
		"amount":           chain.WeiToUnit(value),
		"contract_tx_hash": signed.Hash().Hex(),
		"tx_nonce":         nonce,
		"check_count":      0,
	}
	if err := r.db.Model(record).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record relay tx: %w", err)
	}

	audit := &model.TransactionModel{
		Action:     "direct_donation_submitted",
		CampaignId: record.CampaignId,
		Chain:      node.Name,
		TxHash:     signed.Hash().Hex(),
		Detail:     fmt.Sprintf("wallet=%s value=%s nonce=%d", wallet.WalletAddress, value, nonce),
	}
	if err := r.db.Create(audit).Error; err != nil {
		logger.Error("Failed to write relay audit record: %v", err)
	}

	logger.Info("Submitted relay tx %s for campaign %d (value %s, nonce %d)",
		signed.Hash().Hex(), record.CampaignId, value, nonce)
	return nil
}

// finish 将直捐记录置为终态
func (r *Relay) finish(record *model.DirectDonationModel, status model.DirectDonationStatus) error {
	if err := r.db.Model(record).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to finish donation %d: %w", record.Id, err)
	}
	record.Status = status
	return nil
}

// feeData 取当前网络费用估算并按百分比提升
// maxFee 以 2*baseFee+tip 为基准再提升，容忍基础费短期上涨
func (r *Relay) feeData(ctx context.Context, node *chain.Node, boost int64) (tipCap *big.Int, feeCap *big.Int, err error) {
	tip, err := chain.WithRetry("SuggestGasTipCap", r.retryAttempts, r.retryDelay, func() (*big.Int, error) {
		return node.Client.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return nil, nil, err
	}

	header, err := chain.WithRetry("HeaderByNumber", r.retryAttempts, r.retryDelay, func() (*types.Header, error) {
		return node.Client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return nil, nil, err
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	tipCap = boostPct(tip, boost)
	maxFee := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	feeCap = boostPct(maxFee, boost)
	return tipCap, feeCap, nil
}

// boostPct 按百分比放大
func boostPct(value *big.Int, pct int64) *big.Int {
	result := new(big.Int).Mul(value, big.NewInt(pct))
	return result.Div(result, big.NewInt(100))
}
