package relay

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
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

// fakeClient 可编程链客户端，捕获所有发出的交易
type fakeClient struct {
	balance     *big.Int
	tip         *big.Int
	baseFee     *big.Int
	gasEstimate uint64
	nonce       uint64
	receipts    map[common.Hash]*types.Receipt
	sent        []*types.Transaction
	sendErr     error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		balance:     big.NewInt(0),
		tip:         big.NewInt(1_000_000_000),  // 1 gwei
		baseFee:     big.NewInt(10_000_000_000), // 10 gwei
		gasEstimate: 100_000,
		nonce:       7,
		receipts:    make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) { return 100, nil }

func (f *fakeClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: new(big.Int).Set(f.baseFee)}, nil
}

func (f *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.tip), nil
}

func (f *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gasEstimate, nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, exists := f.receipts[txHash]
	if !exists {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

type relayFixture struct {
	db         *gorm.DB
	client     *fakeClient
	relay      *Relay
	wallet     model.CampaignWalletModel
	walletAddr common.Address
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	address, keyHex, err := DeriveWallet(1, "test-seed")
	require.NoError(t, err)

	wallet := model.CampaignWalletModel{
		CampaignId:    1,
		WalletAddress: address,
		PrivateKey:    keyHex,
	}
	require.NoError(t, db.Create(&wallet).Error)

	client := newFakeClient()
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

	cfg := config.RelayConfig{
		Interval:      60,
		MasterSeed:    "test-seed",
		MinDonation:   0.01,
		MinGasReserve: 0.0005,
	}

	return &relayFixture{
		db:         db,
		client:     client,
		relay:      NewRelay(db, registry, cfg),
		wallet:     wallet,
		walletAddr: common.HexToAddress(address),
	}
}

func (fx *relayFixture) loadDonation(t *testing.T) model.DirectDonationModel {
	t.Helper()
	var record model.DirectDonationModel
	require.NoError(t, fx.db.First(&record).Error)
	return record
}

func (fx *relayFixture) seedPending(t *testing.T, hash string, checkCount int, nonce uint64) model.DirectDonationModel {
	t.Helper()
	record := model.DirectDonationModel{
		CampaignId:     1,
		WalletAddress:  fx.wallet.WalletAddress,
		Amount:         1,
		Status:         model.DirectDonationStatusPending,
		ContractTxHash: hash,
		CheckCount:     checkCount,
		TxNonce:        nonce,
	}
	require.NoError(t, fx.db.Create(&record).Error)
	return record
}

// boosted 按百分比放大，与中继内部计算保持一致
func boosted(value *big.Int, pct int64) *big.Int {
	result := new(big.Int).Mul(value, big.NewInt(pct))
	return result.Div(result, big.NewInt(100))
}

func TestRelaySubmitsWhenFunded(t *testing.T) {
	fx := newRelayFixture(t)
	fx.client.balance = chain.UnitToWei(1)

	fx.relay.Tick(context.Background())

	require.Len(t, fx.client.sent, 1)
	tx := fx.client.sent[0]

	assert.Equal(t, common.HexToAddress(testContractAddress), *tx.To())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(130_000), tx.Gas()) // 估算值加30%余量

	// feeCap = (2*baseFee + tip) * 120%
	maxFee := new(big.Int).Add(new(big.Int).Mul(fx.client.baseFee, big.NewInt(2)), fx.client.tip)
	assert.Equal(t, 0, tx.GasFeeCap().Cmp(boosted(maxFee, 120)))
	assert.Equal(t, 0, tx.GasTipCap().Cmp(boosted(fx.client.tip, 120)))

	// 转账额 = 余额 - 预留，预留 = gasLimit*feeCap*150%
	cost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasFeeCap())
	reserve := boosted(cost, 150)
	expectedValue := new(big.Int).Sub(chain.UnitToWei(1), reserve)
	assert.Equal(t, 0, tx.Value().Cmp(expectedValue))

	record := fx.loadDonation(t)
	assert.Equal(t, model.DirectDonationStatusPending, record.Status)
	assert.Equal(t, tx.Hash().Hex(), record.ContractTxHash)
	assert.Equal(t, uint64(7), record.TxNonce)
	assert.Equal(t, 0, record.CheckCount)

	var audits int64
	require.NoError(t, fx.db.Model(&model.TransactionModel{}).
		Where("action = ?", "direct_donation_submitted").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestRelayIgnoresDustBalance(t *testing.T) {
	fx := newRelayFixture(t)
	fx.client.balance = chain.UnitToWei(0.005)

	fx.relay.Tick(context.Background())

	assert.Empty(t, fx.client.sent)
	var count int64
	require.NoError(t, fx.db.Model(&model.DirectDonationModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRelayPollsPendingBeforeNewSubmission(t *testing.T) {
	fx := newRelayFixture(t)
	fx.client.balance = chain.UnitToWei(1)
	fx.seedPending(t, "0xaaaa", 0, 7)

	fx.relay.Tick(context.Background())

	// 已有pending时只轮询回执，不追加新交易
	assert.Empty(t, fx.client.sent)

	var count int64
	require.NoError(t, fx.db.Model(&model.DirectDonationModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	record := fx.loadDonation(t)
	assert.Equal(t, model.DirectDonationStatusPending, record.Status)
	assert.Equal(t, 1, record.CheckCount)
}

func TestRelayCompletesOnSuccessReceipt(t *testing.T) {
	fx := newRelayFixture(t)
	hash := common.HexToHash("0xbeef")
	fx.seedPending(t, hash.Hex(), 3, 7)
	fx.client.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful}

	fx.relay.Tick(context.Background())

	record := fx.loadDonation(t)
	assert.Equal(t, model.DirectDonationStatusCompleted, record.Status)
	assert.True(t, record.Status.IsTerminal())
}

func TestRelayFailsOnRevertedReceipt(t *testing.T) {
	fx := newRelayFixture(t)
	hash := common.HexToHash("0xdead")
	fx.seedPending(t, hash.Hex(), 3, 7)
	fx.client.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed}

	fx.relay.Tick(context.Background())

	record := fx.loadDonation(t)
	assert.Equal(t, model.DirectDonationStatusFailed, record.Status)
}

func TestRelayReplacesStuckTransaction(t *testing.T) {
	fx := newRelayFixture(t)
	fx.seedPending(t, "0xstuck", maxCheckCount, 3)

	fx.relay.Tick(context.Background())

	require.Len(t, fx.client.sent, 1)
	tx := fx.client.sent[0]

	// 同nonce零值自转账，费用提升到150%
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, 0, tx.Value().Sign())
	assert.Equal(t, uint64(21_000), tx.Gas())
	assert.Equal(t, fx.walletAddr, *tx.To())

	maxFee := new(big.Int).Add(new(big.Int).Mul(fx.client.baseFee, big.NewInt(2)), fx.client.tip)
	assert.Equal(t, 0, tx.GasFeeCap().Cmp(boosted(maxFee, 150)))

	record := fx.loadDonation(t)
	assert.Equal(t, model.DirectDonationStatusPending, record.Status)
	assert.Equal(t, tx.Hash().Hex(), record.ContractTxHash)
	assert.Equal(t, 0, record.CheckCount)
	assert.Equal(t, uint64(3), record.TxNonce)
}

func TestRelayIncrementsCheckCountUntilStuck(t *testing.T) {
	fx := newRelayFixture(t)
	fx.seedPending(t, "0xwaiting", maxCheckCount-1, 3)

	fx.relay.Tick(context.Background())

	// 计数未满只累加，不替换
	assert.Empty(t, fx.client.sent)
	record := fx.loadDonation(t)
	assert.Equal(t, maxCheckCount, record.CheckCount)

	// 下一轮达到上限，触发替换
	fx.relay.Tick(context.Background())
	assert.Len(t, fx.client.sent, 1)
}

func TestRelayMarksFailedWhenSendFails(t *testing.T) {
	fx := newRelayFixture(t)
	fx.client.balance = chain.UnitToWei(1)
	fx.client.sendErr = assert.AnError

	fx.relay.Tick(context.Background())

	record := fx.loadDonation(t)
	assert.Equal(t, model.DirectDonationStatusFailed, record.Status)
	assert.Empty(t, fx.client.sent)
}
