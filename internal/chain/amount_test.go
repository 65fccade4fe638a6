package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeiToUnit(t *testing.T) {
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	assert.Equal(t, 1.0, WeiToUnit(oneEth))

	half := new(big.Int).Div(oneEth, big.NewInt(2))
	assert.Equal(t, 0.5, WeiToUnit(half))

	assert.Equal(t, 0.0, WeiToUnit(big.NewInt(0)))
	assert.Equal(t, 0.0, WeiToUnit(nil))
}

func TestUnitToWei(t *testing.T) {
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	assert.Equal(t, 0, UnitToWei(1.0).Cmp(oneEth))
	assert.Equal(t, 0, UnitToWei(0).Sign())
}

func TestAmountRoundTrip(t *testing.T) {
	for _, v := range []float64{0.0005, 0.01, 1.5, 123.456} {
		assert.InDelta(t, v, WeiToUnit(UnitToWei(v)), 1e-9)
	}
}
