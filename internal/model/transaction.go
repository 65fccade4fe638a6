package model

import (
	"time"
)

// TransactionModel 变更审计记录
// 追加写入，记录所有对镜像的变更动作
type TransactionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Action     string `json:"action" gorm:"not null"` // campaign_created, donation_made, ...
	CampaignId int64  `json:"campaign_id" gorm:"index"`
	Chain      string `json:"chain"`
	TxHash     string `json:"tx_hash"`
	Detail     string `json:"detail" gorm:"type:text"`
}

// TableName 自定义表名
func (TransactionModel) TableName() string {
	return "transactions"
}
