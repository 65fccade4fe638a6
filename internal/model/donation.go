package model

import (
	"time"
)

// DonationModel 捐赠记录
// 每条 DonationMade 事件对应一行，tx_hash 未加唯一约束，重放同一事件会重复入账
type DonationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId int64   `json:"campaign_id" gorm:"not null;index"`
	Donor      string  `json:"donor" gorm:"not null"`
	Amount     float64 `json:"amount" gorm:"not null"`
	Chain      string  `json:"chain"`
	TxHash     string  `json:"tx_hash" gorm:"index"`
	BlockNum   int64   `json:"block_num"`
}

// TableName 自定义表名
func (DonationModel) TableName() string {
	return "donations"
}
