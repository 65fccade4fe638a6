package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderslabs/Fundit/internal/config"
)

func testNode(t *testing.T, name string, isMain bool) *Node {
	t.Helper()
	cfg := config.ChainConfig{
		ChainId:         56,
		ContractAddress: "0x1234567890123456789012345678901234567890",
		IsMain:          isMain,
	}
	contract, err := NewContract(cfg.ContractAddress, cfg.ChainId)
	require.NoError(t, err)
	return &Node{Name: name, Contract: contract, Config: cfg}
}

func TestRegistryRequiresMainChain(t *testing.T) {
	_, err := NewRegistryFromNodes(map[string]*Node{
		"bsc": testNode(t, "bsc", false),
	})
	assert.Error(t, err)

	_, err = NewRegistryFromNodes(nil)
	assert.Error(t, err)
}

func TestRegistryRejectsMultipleMainChains(t *testing.T) {
	_, err := NewRegistryFromNodes(map[string]*Node{
		"bsc":  testNode(t, "bsc", true),
		"base": testNode(t, "base", true),
	})
	assert.Error(t, err)
}

func TestRegistryLookup(t *testing.T) {
	registry, err := NewRegistryFromNodes(map[string]*Node{
		"bsc":  testNode(t, "bsc", true),
		"base": testNode(t, "base", false),
	})
	require.NoError(t, err)

	main := registry.Main()
	require.NotNil(t, main)
	assert.Equal(t, "bsc", main.Name)

	node, err := registry.Get("base")
	require.NoError(t, err)
	assert.False(t, node.IsMain())

	_, err = registry.Get("solana")
	assert.Error(t, err)
}

func TestRegistryNodesSorted(t *testing.T) {
	registry, err := NewRegistryFromNodes(map[string]*Node{
		"polygon": testNode(t, "polygon", false),
		"base":    testNode(t, "base", false),
		"bsc":     testNode(t, "bsc", true),
	})
	require.NoError(t, err)

	nodes := registry.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "base", nodes[0].Name)
	assert.Equal(t, "bsc", nodes[1].Name)
	assert.Equal(t, "polygon", nodes[2].Name)
}
