package model

import (
	"fmt"
	"time"
)

// WithdrawalStatus 提现请求状态
type WithdrawalStatus string

const (
	WithdrawalStatusRequested WithdrawalStatus = "Requested" // 已请求
	WithdrawalStatusProcessed WithdrawalStatus = "Processed" // 已处理
)

// CanTransitionTo 状态机只允许 Requested -> Processed 单向流转
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	return s == WithdrawalStatusRequested && next == WithdrawalStatusProcessed
}

// TransitionTo 执行状态流转，非法流转返回错误
func (s WithdrawalStatus) TransitionTo(next WithdrawalStatus) (WithdrawalStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("invalid withdrawal status transition: %s -> %s", s, next)
	}
	return next, nil
}

// WithdrawalModel 提现请求镜像
type WithdrawalModel struct {
	RequestId int64     `json:"request_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Requester   string           `json:"requester" gorm:"not null"`
	Amount      float64          `json:"amount" gorm:"not null"`
	Token       string           `json:"token"`
	TargetChain int64            `json:"target_chain"`
	Status      WithdrawalStatus `json:"status" gorm:"default:'Requested'"`

	RequestedTxHash string     `json:"requested_tx_hash"`
	ProcessedTxHash string     `json:"processed_tx_hash"`
	ProcessedAt     *time.Time `json:"processed_at"`
}

// TableName 自定义表名
func (WithdrawalModel) TableName() string {
	return "withdrawals"
}
