package logic

import (
	"errors"
	"fmt"

	"github.com/xanderslabs/Fundit/internal/model"
	"gorm.io/gorm"
)

// CampaignLogic 活动查询逻辑
type CampaignLogic struct {
	db *gorm.DB
}

// NewCampaignLogic 创建活动查询逻辑
func NewCampaignLogic(db *gorm.DB) *CampaignLogic {
	return &CampaignLogic{db: db}
}

// GetCampaigns 获取活动列表，支持筛选与分页
func (l *CampaignLogic) GetCampaigns(ended *bool, creator, search string, page, pageSize int) ([]model.CampaignModel, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := l.db.Model(&model.CampaignModel{})
	if ended != nil {
		query = query.Where("ended = ?", *ended)
	}
	if creator != "" {
		query = query.Where("creator = ?", creator)
	}
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动总数失败: %w", err)
	}

	var campaigns []model.CampaignModel
	err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&campaigns).Error
	if err != nil {
		return nil, 0, fmt.Errorf("获取活动列表失败: %w", err)
	}

	return campaigns, total, nil
}

// GetCampaign 获取活动详情
func (l *CampaignLogic) GetCampaign(id int64) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := l.db.First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("活动不存在")
		}
		return nil, fmt.Errorf("获取活动详情失败: %w", err)
	}
	return &campaign, nil
}

// GetCampaignDonations 获取活动捐赠记录
func (l *CampaignLogic) GetCampaignDonations(id int64, page, pageSize int) ([]model.DonationModel, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := l.db.Model(&model.DonationModel{}).Where("campaign_id = ?", id)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取捐赠总数失败: %w", err)
	}

	var donations []model.DonationModel
	err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&donations).Error
	if err != nil {
		return nil, 0, fmt.Errorf("获取捐赠记录失败: %w", err)
	}

	return donations, total, nil
}

// GetWithdrawals 获取提现请求列表
func (l *CampaignLogic) GetWithdrawals(status string, page, pageSize int) ([]model.WithdrawalModel, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := l.db.Model(&model.WithdrawalModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取提现总数失败: %w", err)
	}

	var withdrawals []model.WithdrawalModel
	err := query.Order("request_id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&withdrawals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("获取提现列表失败: %w", err)
	}

	return withdrawals, total, nil
}
