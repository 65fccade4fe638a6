package model

import (
	"time"
)

// IndexerStateModel 索引游标
// 每条链一行，记录最后已索引区块，除跳块外单调不减
type IndexerStateModel struct {
	Chain            string    `json:"chain" gorm:"primaryKey"`
	LastIndexedBlock int64     `json:"last_indexed_block" gorm:"not null"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 自定义表名
func (IndexerStateModel) TableName() string {
	return "indexer_state"
}
