package reconcile

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderslabs/Fundit/internal/chain"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/database"
	"github.com/xanderslabs/Fundit/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testContractAddress = "0x1234567890123456789012345678901234567890"

const getCampaignOutputsABI = `[{
	"inputs": [{"name": "campaignId", "type": "uint256"}],
	"name": "getCampaign",
	"outputs": [
		{"name": "name", "type": "string"},
		{"name": "target", "type": "uint256"},
		{"name": "description", "type": "string"},
		{"name": "socialLink", "type": "string"},
		{"name": "imageId", "type": "string"},
		{"name": "creator", "type": "address"},
		{"name": "ended", "type": "bool"},
		{"name": "totalStable", "type": "uint256"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

// fakeClient 只实现对账需要的合约读取
type fakeClient struct {
	campaigns map[int64][]byte
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	id := new(big.Int).SetBytes(msg.Data[len(msg.Data)-32:]).Int64()
	data, exists := f.campaigns[id]
	if !exists {
		return nil, fmt.Errorf("unknown campaign %d", id)
	}
	return data, nil
}

func (f *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{}, nil
}

func (f *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error { return nil }

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB, client chain.Client) *Engine {
	t.Helper()
	contract, err := chain.NewContract(testContractAddress, 56)
	require.NoError(t, err)

	node := &chain.Node{
		Name:     "bsc",
		Client:   client,
		Contract: contract,
		Config: config.ChainConfig{
			ChainId:         56,
			RpcUrl:          "http://localhost:8545",
			ContractAddress: testContractAddress,
			IsMain:          true,
		},
	}
	registry, err := chain.NewRegistryFromNodes(map[string]*chain.Node{"bsc": node})
	require.NoError(t, err)

	return NewEngine(db, registry, config.ReconcileConfig{Threshold: 0.01})
}

func packOnchainCampaign(t *testing.T, ended bool, totalStable *big.Int) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(getCampaignOutputsABI))
	require.NoError(t, err)

	data, err := parsed.Methods["getCampaign"].Outputs.Pack(
		"Reef", chain.UnitToWei(1000), "", "", "",
		common.HexToAddress("0xabc0000000000000000000000000000000000001"), ended, totalStable)
	require.NoError(t, err)
	return data
}

func TestReconcileHealsDrift(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&model.CampaignModel{
		Id: 1, Name: "Reef", Creator: "0xabc", AmountRaised: 50, Chain: "bsc",
	}).Error)

	client := &fakeClient{campaigns: map[int64][]byte{
		1: packOnchainCampaign(t, true, chain.UnitToWei(100)),
	}}
	engine := newTestEngine(t, db, client)

	result, err := engine.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 0, result.Errors)

	var campaign model.CampaignModel
	require.NoError(t, db.First(&campaign, "id = ?", 1).Error)
	assert.InDelta(t, 100, campaign.AmountRaised, 1e-9)
	assert.True(t, campaign.Ended)
	require.NotNil(t, campaign.LastReconciled)

	var logs []model.ReconciliationLogModel
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(1), logs[0].CampaignId)
	assert.InDelta(t, 50, logs[0].PreviousValue, 1e-9)
	assert.InDelta(t, 100, logs[0].NewValue, 1e-9)
	assert.InDelta(t, 50, logs[0].Discrepancy, 1e-9)
}

func TestReconcileIgnoresSubThresholdDrift(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&model.CampaignModel{
		Id: 1, Name: "Reef", Creator: "0xabc", AmountRaised: 100.005, Chain: "bsc",
	}).Error)

	client := &fakeClient{campaigns: map[int64][]byte{
		1: packOnchainCampaign(t, false, chain.UnitToWei(100)),
	}}
	engine := newTestEngine(t, db, client)

	result, err := engine.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.Updated)

	// 浮点噪声不触发修正，也不留审计
	var campaign model.CampaignModel
	require.NoError(t, db.First(&campaign, "id = ?", 1).Error)
	assert.InDelta(t, 100.005, campaign.AmountRaised, 1e-9)
	assert.Nil(t, campaign.LastReconciled)

	var count int64
	require.NoError(t, db.Model(&model.ReconciliationLogModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestReconcileCountsUnreadableCampaigns(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&model.CampaignModel{
		Id: 1, Name: "Reef", Creator: "0xabc", AmountRaised: 50, Chain: "bsc",
	}).Error)
	require.NoError(t, db.Create(&model.CampaignModel{
		Id: 2, Name: "Forest", Creator: "0xabc", AmountRaised: 10, Chain: "bsc",
	}).Error)

	// 活动2返回的不是合法的 getCampaign 输出
	client := &fakeClient{campaigns: map[int64][]byte{
		1: packOnchainCampaign(t, false, chain.UnitToWei(50)),
		2: {0x01, 0x02},
	}}
	engine := newTestEngine(t, db, client)

	result, err := engine.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Errors)

	// 读取失败的活动保持原值
	var campaign model.CampaignModel
	require.NoError(t, db.First(&campaign, "id = ?", 2).Error)
	assert.InDelta(t, 10, campaign.AmountRaised, 1e-9)
}
