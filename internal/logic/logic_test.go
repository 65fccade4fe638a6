package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderslabs/Fundit/internal/database"
	"github.com/xanderslabs/Fundit/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedCampaigns(t *testing.T, db *gorm.DB) {
	t.Helper()
	campaigns := []model.CampaignModel{
		{Id: 1, Name: "Save the Reef", Description: "ocean cleanup", Creator: "0xaaa", Ended: false},
		{Id: 2, Name: "Plant Trees", Description: "forest restoration", Creator: "0xbbb", Ended: true},
		{Id: 3, Name: "Reef Research", Description: "marine biology", Creator: "0xaaa", Ended: false},
	}
	for i := range campaigns {
		require.NoError(t, db.Create(&campaigns[i]).Error)
	}
}

func TestGetCampaignsFilters(t *testing.T) {
	db := setupTestDB(t)
	seedCampaigns(t, db)
	l := NewCampaignLogic(db)

	all, total, err := l.GetCampaigns(nil, "", "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	// 按ID倒序
	assert.Equal(t, int64(3), all[0].Id)

	ended := true
	finished, total, err := l.GetCampaigns(&ended, "", "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(2), finished[0].Id)

	byCreator, total, err := l.GetCampaigns(nil, "0xaaa", "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, byCreator, 2)

	bySearch, total, err := l.GetCampaigns(nil, "", "Reef", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, bySearch, 2)
}

func TestGetCampaignsPagination(t *testing.T) {
	db := setupTestDB(t)
	seedCampaigns(t, db)
	l := NewCampaignLogic(db)

	page1, total, err := l.GetCampaigns(nil, "", "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page1, 2)

	page2, _, err := l.GetCampaigns(nil, "", "", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	// 非法分页参数回退默认值
	fallback, _, err := l.GetCampaigns(nil, "", "", 0, 1000)
	require.NoError(t, err)
	assert.Len(t, fallback, 3)
}

func TestGetCampaignNotFound(t *testing.T) {
	db := setupTestDB(t)
	l := NewCampaignLogic(db)

	_, err := l.GetCampaign(99)
	assert.Error(t, err)
}

func TestGetWithdrawalsByStatus(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&model.WithdrawalModel{
		RequestId: 1, Requester: "0xaaa", Amount: 10, Status: model.WithdrawalStatusRequested,
	}).Error)
	require.NoError(t, db.Create(&model.WithdrawalModel{
		RequestId: 2, Requester: "0xbbb", Amount: 20, Status: model.WithdrawalStatusProcessed,
	}).Error)

	l := NewCampaignLogic(db)
	requested, total, err := l.GetWithdrawals("Requested", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), requested[0].RequestId)
}

func TestEnsureWalletIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&model.CampaignModel{
		Id: 1, Name: "Reef", Creator: "0xaaa",
	}).Error)

	l := NewWalletLogic(db, "test-seed")

	addr1, err := l.EnsureWallet(1)
	require.NoError(t, err)
	assert.NotEmpty(t, addr1)

	addr2, err := l.EnsureWallet(1)
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2)

	var count int64
	require.NoError(t, db.Model(&model.CampaignWalletModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureWalletRejectsUnknownCampaign(t *testing.T) {
	db := setupTestDB(t)
	l := NewWalletLogic(db, "test-seed")

	_, err := l.EnsureWallet(42)
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.CampaignWalletModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
