package model

import (
	"time"
)

// DirectDonationStatus 直捐中继状态
type DirectDonationStatus string

const (
	DirectDonationStatusPending   DirectDonationStatus = "pending"   // 处理中
	DirectDonationStatusCompleted DirectDonationStatus = "completed" // 已完成
	DirectDonationStatusFailed    DirectDonationStatus = "failed"    // 已失败
)

// IsTerminal completed/failed 为终态，不再处理
func (s DirectDonationStatus) IsTerminal() bool {
	return s == DirectDonationStatusCompleted || s == DirectDonationStatusFailed
}

// DirectDonationModel 直捐记录
// 钱包余额达到阈值时创建，每个钱包同一时间至多一条 pending
type DirectDonationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId    int64                `json:"campaign_id" gorm:"not null;index"`
	WalletAddress string               `json:"wallet_address" gorm:"not null;index"`
	Amount        float64              `json:"amount"`
	Status        DirectDonationStatus `json:"status" gorm:"default:'pending';index"`

	SourceTxHash   string `json:"source_tx_hash"`
	ContractTxHash string `json:"contract_tx_hash"`
	CheckCount     int    `json:"check_count" gorm:"default:0"`
	TxNonce        uint64 `json:"tx_nonce"`
}

// TableName 自定义表名
func (DirectDonationModel) TableName() string {
	return "direct_donations"
}
