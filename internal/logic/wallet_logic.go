package logic

import (
	"errors"
	"fmt"

	"github.com/xanderslabs/Fundit/internal/model"
	"github.com/xanderslabs/Fundit/internal/relay"
	"gorm.io/gorm"
)

// WalletLogic 活动收款钱包逻辑
type WalletLogic struct {
	db         *gorm.DB
	masterSeed string
}

// NewWalletLogic 创建钱包逻辑
func NewWalletLogic(db *gorm.DB, masterSeed string) *WalletLogic {
	return &WalletLogic{db: db, masterSeed: masterSeed}
}

// EnsureWallet 惰性创建并返回活动的收款地址
// 幂等：已存在直接返回，不存在时确定性派生后落库
func (l *WalletLogic) EnsureWallet(campaignId int64) (string, error) {
	var campaign model.CampaignModel
	if err := l.db.First(&campaign, campaignId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.New("活动不存在")
		}
		return "", fmt.Errorf("获取活动失败: %w", err)
	}

	var wallet model.CampaignWalletModel
	err := l.db.Where("campaign_id = ?", campaignId).First(&wallet).Error
	if err == nil {
		return wallet.WalletAddress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("获取钱包失败: %w", err)
	}

	address, keyHex, err := relay.DeriveWallet(campaignId, l.masterSeed)
	if err != nil {
		return "", fmt.Errorf("派生钱包失败: %w", err)
	}

	wallet = model.CampaignWalletModel{
		CampaignId:    campaignId,
		WalletAddress: address,
		PrivateKey:    keyHex,
	}
	if err := l.db.Create(&wallet).Error; err != nil {
		return "", fmt.Errorf("创建钱包失败: %w", err)
	}

	return address, nil
}
