package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 众筹合约ABI定义
const contractABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "creator", "type": "address"}
		],
		"name": "CampaignCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"}
		],
		"name": "CampaignEdited",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": false, "name": "finalStableValue", "type": "uint256"}
		],
		"name": "CampaignEnded",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaignId", "type": "uint256"},
			{"indexed": true, "name": "donor", "type": "address"},
			{"indexed": false, "name": "netUSDValue", "type": "uint256"}
		],
		"name": "DonationMade",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "requestId", "type": "uint256"},
			{"indexed": false, "name": "requester", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "token", "type": "address"},
			{"indexed": false, "name": "targetChainId", "type": "uint256"}
		],
		"name": "WithdrawalRequested",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "requestId", "type": "uint256"},
			{"indexed": false, "name": "requester", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "token", "type": "address"},
			{"indexed": false, "name": "targetChainId", "type": "uint256"}
		],
		"name": "WithdrawalProcessed",
		"type": "event"
	},
	{
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
	},
	{
		"inputs": [
			{"name": "campaignId", "type": "uint256"},
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "donate",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// CampaignCreatedEvent 活动创建事件
type CampaignCreatedEvent struct {
	CampaignId *big.Int
	Creator    common.Address
	Raw        types.Log
}

// CampaignEditedEvent 活动编辑事件
type CampaignEditedEvent struct {
	CampaignId *big.Int
	Raw        types.Log
}

// CampaignEndedEvent 活动结束事件
type CampaignEndedEvent struct {
	CampaignId       *big.Int
	FinalStableValue *big.Int
	Raw              types.Log
}

// DonationMadeEvent 捐赠事件
type DonationMadeEvent struct {
	CampaignId  *big.Int
	Donor       common.Address
	NetUSDValue *big.Int
	Raw         types.Log
}

// WithdrawalEvent 提现事件（Requested/Processed 共用载荷）
type WithdrawalEvent struct {
	RequestId     *big.Int
	Requester     common.Address
	Amount        *big.Int
	Token         common.Address
	TargetChainId *big.Int
	Processed     bool
	Raw           types.Log
}

// OnchainCampaign getCampaign 读取结果
type OnchainCampaign struct {
	Name        string
	Target      *big.Int
	Description string
	SocialLink  string
	ImageId     string
	Creator     common.Address
	Ended       bool
	TotalStable *big.Int
}

// Contract 众筹合约句柄
type Contract struct {
	address common.Address
	abi     abi.ABI
	chainId int64
}

// NewContract 创建合约实例
func NewContract(address string, chainId int64) (*Contract, error) {
	parsedABI, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	return &Contract{
		address: common.HexToAddress(address),
		abi:     parsedABI,
		chainId: chainId,
	}, nil
}

// Address 获取合约地址
func (c *Contract) Address() common.Address {
	return c.address
}

// ChainId 获取链ID
func (c *Contract) ChainId() int64 {
	return c.chainId
}

// LifecycleTopics 活动生命周期事件主题（created/edited/ended）
func (c *Contract) LifecycleTopics() []common.Hash {
	return []common.Hash{
		c.abi.Events["CampaignCreated"].ID,
		c.abi.Events["CampaignEdited"].ID,
		c.abi.Events["CampaignEnded"].ID,
	}
}

// DonationTopics 捐赠事件主题
func (c *Contract) DonationTopics() []common.Hash {
	return []common.Hash{c.abi.Events["DonationMade"].ID}
}

// WithdrawalTopics 提现事件主题（requested/processed）
func (c *Contract) WithdrawalTopics() []common.Hash {
	return []common.Hash{
		c.abi.Events["WithdrawalRequested"].ID,
		c.abi.Events["WithdrawalProcessed"].ID,
	}
}

// ParseEvent 解析事件日志为具体事件类型
func (c *Contract) ParseEvent(lg types.Log) (interface{}, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	switch lg.Topics[0] {
	case c.abi.Events["CampaignCreated"].ID:
		if len(lg.Topics) < 3 {
			return nil, fmt.Errorf("invalid CampaignCreated event: insufficient topics")
		}
		return &CampaignCreatedEvent{
			CampaignId: new(big.Int).SetBytes(lg.Topics[1].Bytes()),
			Creator:    common.BytesToAddress(lg.Topics[2].Bytes()),
			Raw:        lg,
		}, nil

	case c.abi.Events["CampaignEdited"].ID:
		if len(lg.Topics) < 2 {
			return nil, fmt.Errorf("invalid CampaignEdited event: insufficient topics")
		}
		return &CampaignEditedEvent{
			CampaignId: new(big.Int).SetBytes(lg.Topics[1].Bytes()),
			Raw:        lg,
		}, nil

	case c.abi.Events["CampaignEnded"].ID:
		if len(lg.Topics) < 2 {
			return nil, fmt.Errorf("invalid CampaignEnded event: insufficient topics")
		}
		ev := &CampaignEndedEvent{
			CampaignId:       new(big.Int).SetBytes(lg.Topics[1].Bytes()),
			FinalStableValue: big.NewInt(0),
			Raw:              lg,
		}
		if len(lg.Data) > 0 {
			ev.FinalStableValue = new(big.Int).SetBytes(lg.Data)
		}
		return ev, nil

	case c.abi.Events["DonationMade"].ID:
		if len(lg.Topics) < 3 {
			return nil, fmt.Errorf("invalid DonationMade event: insufficient topics")
		}
		ev := &DonationMadeEvent{
			CampaignId:  new(big.Int).SetBytes(lg.Topics[1].Bytes()),
			Donor:       common.BytesToAddress(lg.Topics[2].Bytes()),
			NetUSDValue: big.NewInt(0),
			Raw:         lg,
		}
		if len(lg.Data) > 0 {
			ev.NetUSDValue = new(big.Int).SetBytes(lg.Data)
		}
		return ev, nil

	case c.abi.Events["WithdrawalRequested"].ID:
		return c.parseWithdrawalEvent("WithdrawalRequested", lg, false)

	case c.abi.Events["WithdrawalProcessed"].ID:
		return c.parseWithdrawalEvent("WithdrawalProcessed", lg, true)

	default:
		return nil, fmt.Errorf("unknown event signature: %s", lg.Topics[0].Hex())
	}
}

// parseWithdrawalEvent 解析提现事件
func (c *Contract) parseWithdrawalEvent(name string, lg types.Log, processed bool) (*WithdrawalEvent, error) {
	if len(lg.Topics) < 2 {
		return nil, fmt.Errorf("invalid %s event: insufficient topics", name)
	}

	values, err := c.abi.Unpack(name, lg.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s event: %w", name, err)
	}
	if len(values) < 4 {
		return nil, fmt.Errorf("invalid %s event: expected 4 data fields, got %d", name, len(values))
	}

	requester, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid %s event: bad requester field", name)
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid %s event: bad amount field", name)
	}
	token, ok := values[2].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid %s event: bad token field", name)
	}
	targetChainId, ok := values[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid %s event: bad targetChainId field", name)
	}

	return &WithdrawalEvent{
		RequestId:     new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		Requester:     requester,
		Amount:        amount,
		Token:         token,
		TargetChainId: targetChainId,
		Processed:     processed,
		Raw:           lg,
	}, nil
}

// PackGetCampaign 打包 getCampaign 调用数据
func (c *Contract) PackGetCampaign(campaignId *big.Int) ([]byte, error) {
	return c.abi.Pack("getCampaign", campaignId)
}

// UnpackCampaign 解包 getCampaign 返回值
func (c *Contract) UnpackCampaign(data []byte) (*OnchainCampaign, error) {
	values, err := c.abi.Unpack("getCampaign", data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getCampaign result: %w", err)
	}
	if len(values) < 8 {
		return nil, fmt.Errorf("invalid getCampaign result: expected 8 fields, got %d", len(values))
	}

	campaign := &OnchainCampaign{}
	var ok bool
	if campaign.Name, ok = values[0].(string); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad name field")
	}
	if campaign.Target, ok = values[1].(*big.Int); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad target field")
	}
	if campaign.Description, ok = values[2].(string); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad description field")
	}
	if campaign.SocialLink, ok = values[3].(string); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad socialLink field")
	}
	if campaign.ImageId, ok = values[4].(string); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad imageId field")
	}
	if campaign.Creator, ok = values[5].(common.Address); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad creator field")
	}
	if campaign.Ended, ok = values[6].(bool); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad ended field")
	}
	if campaign.TotalStable, ok = values[7].(*big.Int); !ok {
		return nil, fmt.Errorf("invalid getCampaign result: bad totalStable field")
	}

	return campaign, nil
}

// PackDonate 打包 donate 调用数据，token 为零地址表示主币捐赠
func (c *Contract) PackDonate(campaignId *big.Int, token common.Address, amount *big.Int) ([]byte, error) {
	return c.abi.Pack("donate", campaignId, token, amount)
}
