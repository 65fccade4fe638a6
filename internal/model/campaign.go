package model

import (
	"time"
)

// CampaignModel 众筹活动镜像
// 链上活动状态的数据库副本，amount_raised 可能暂时偏离链上值，由对账任务修正
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Name        string `json:"name" gorm:"not null"`
	Target      float64 `json:"target"`
	Description string `json:"description" gorm:"type:text"`
	SocialLink  string `json:"social_link"`
	ImageId     string `json:"image_id"`

	// 创建者信息
	Creator string `json:"creator" gorm:"not null;index"`

	// 筹款状态
	Ended        bool    `json:"ended" gorm:"default:false"`
	AmountRaised float64 `json:"amount_raised" gorm:"default:0"`

	// 区块链信息
	Chain  string `json:"chain"`
	TxHash string `json:"tx_hash"`

	// 对账信息
	LastReconciled *time.Time `json:"last_reconciled"`
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaigns"
}
