package relay

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// DeriveKey 从主种子确定性派生活动私钥
// HMAC-SHA256(seed, "campaign-<id>") 得到256位密钥
// 同一 (id, seed) 永远得到同一密钥，不同id互相独立，种子无法从落库记录反推
func DeriveKey(campaignId int64, masterSeed string) (*ecdsa.PrivateKey, error) {
	mac := hmac.New(sha256.New, []byte(masterSeed))
	mac.Write([]byte(fmt.Sprintf("campaign-%d", campaignId)))
	keyBytes := mac.Sum(nil)

	key, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key for campaign %d: %w", campaignId, err)
	}
	return key, nil
}

// DeriveWallet 派生活动钱包的地址与私钥十六进制串
func DeriveWallet(campaignId int64, masterSeed string) (address string, privateKeyHex string, err error) {
	key, err := DeriveKey(campaignId, masterSeed)
	if err != nil {
		return "", "", err
	}

	address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	privateKeyHex = hex.EncodeToString(crypto.FromECDSA(key))
	return address, privateKeyHex, nil
}
