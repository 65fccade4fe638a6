package model

import (
	"time"
)

// CampaignWalletModel 活动收款钱包
// 由主种子确定性派生，每个活动至多一个；种子本身不落库
type CampaignWalletModel struct {
	CampaignId int64     `json:"campaign_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt  time.Time `json:"created_at"`

	WalletAddress string `json:"wallet_address" gorm:"uniqueIndex;not null"`
	PrivateKey    string `json:"-" gorm:"not null"`
}

// TableName 自定义表名
func (CampaignWalletModel) TableName() string {
	return "campaign_wallets"
}
