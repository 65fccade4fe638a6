package chain

import (
	"math/big"
)

// weiPerUnit 链上金额精度，1e18 wei = 1 单位
var weiPerUnit = new(big.Float).SetFloat64(1e18)

// WeiToUnit 链上整数金额转为镜像使用的浮点单位
func WeiToUnit(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	result, _ := new(big.Float).Quo(new(big.Float).SetInt(value), weiPerUnit).Float64()
	return result
}

// UnitToWei 浮点单位转回链上整数金额
func UnitToWei(value float64) *big.Int {
	result, _ := new(big.Float).Mul(new(big.Float).SetFloat64(value), weiPerUnit).Int(nil)
	return result
}
