package model

import (
	"time"
)

// ReconciliationLogModel 对账审计记录
// 追加写入，每次修正一个活动写一行
type ReconciliationLogModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	CampaignId    int64   `json:"campaign_id" gorm:"not null;index"`
	PreviousValue float64 `json:"previous_value"`
	NewValue      float64 `json:"new_value"`
	Discrepancy   float64 `json:"discrepancy"`
}

// TableName 自定义表名
func (ReconciliationLogModel) TableName() string {
	return "reconciliation_log"
}
