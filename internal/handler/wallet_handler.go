package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xanderslabs/Fundit/internal/logic"
	"gorm.io/gorm"
)

type WalletHandler struct {
	walletLogic *logic.WalletLogic
}

func NewWalletHandler(db *gorm.DB, masterSeed string) *WalletHandler {
	return &WalletHandler{
		walletLogic: logic.NewWalletLogic(db, masterSeed),
	}
}

// ProvisionWallet 惰性创建并返回活动收款地址，私钥永不外泄
func (h *WalletHandler) ProvisionWallet(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的活动ID"})
		return
	}

	address, err := h.walletLogic.EnsureWallet(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id":    id,
		"wallet_address": address,
	})
}
