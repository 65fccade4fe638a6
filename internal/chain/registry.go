package chain

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/logger"
)

// Node 单链节点：客户端加合约句柄
type Node struct {
	Name     string
	Client   Client
	Contract *Contract
	Config   config.ChainConfig

	closer func()
}

// IsMain 是否为主链
func (n *Node) IsMain() bool {
	return n.Config.IsMain
}

// Registry 链注册表
// 进程启动时构建一次，按值注入到各组件，取代模块级全局映射
type Registry struct {
	nodes     map[string]*Node
	mainChain string
}

// NewRegistry 从配置构建注册表，连接失败直接报错
func NewRegistry(chains map[string]config.ChainConfig) (*Registry, error) {
	nodes := make(map[string]*Node, len(chains))

	for name, cfg := range chains {
		logger.Info("Connecting chain %s (id: %d, rpc: %s)", name, cfg.ChainId, cfg.RpcUrl)

		client, err := ethclient.Dial(cfg.RpcUrl)
		if err != nil {
			return nil, fmt.Errorf("chain %s: failed to dial RPC: %w", name, err)
		}

		// 测试连接
		if _, err := client.BlockNumber(context.Background()); err != nil {
			client.Close()
			return nil, fmt.Errorf("chain %s: connection test failed: %w", name, err)
		}

		contract, err := NewContract(cfg.ContractAddress, cfg.ChainId)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("chain %s: %w", name, err)
		}

		nodes[name] = &Node{
			Name:     name,
			Client:   client,
			Contract: contract,
			Config:   cfg,
			closer:   client.Close,
		}
		logger.Info("Successfully connected chain %s", name)
	}

	return NewRegistryFromNodes(nodes)
}

// NewRegistryFromNodes 从已有节点构建注册表，用于注入自定义客户端
func NewRegistryFromNodes(nodes map[string]*Node) (*Registry, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no chains configured")
	}

	mainChain := ""
	for name, node := range nodes {
		if node.IsMain() {
			if mainChain != "" {
				return nil, fmt.Errorf("multiple main chains configured: %s and %s", mainChain, name)
			}
			mainChain = name
		}
	}
	if mainChain == "" {
		return nil, fmt.Errorf("no main chain configured")
	}

	return &Registry{nodes: nodes, mainChain: mainChain}, nil
}

// Get 获取指定链节点
func (r *Registry) Get(name string) (*Node, error) {
	node, exists := r.nodes[name]
	if !exists {
		return nil, fmt.Errorf("chain %s not found", name)
	}
	return node, nil
}

// Main 获取主链节点
func (r *Registry) Main() *Node {
	return r.nodes[r.mainChain]
}

// Nodes 按链名排序返回所有节点，保证遍历顺序稳定
func (r *Registry) Nodes() []*Node {
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	nodes := make([]*Node, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, r.nodes[name])
	}
	return nodes
}

// Close 关闭所有链连接
func (r *Registry) Close() {
	for _, node := range r.nodes {
		if node.closer != nil {
			node.closer()
		}
	}
	logger.Info("Chain registry closed")
}
