package router

import (
	"github.com/gin-gonic/gin"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/handler"
	"github.com/xanderslabs/Fundit/internal/indexer"
	"gorm.io/gorm"
)

// Setup 初始化路由
func Setup(db *gorm.DB, scheduler *indexer.Scheduler, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	campaignHandler := handler.NewCampaignHandler(db)
	statusHandler := handler.NewStatusHandler(scheduler)
	walletHandler := handler.NewWalletHandler(db, cfg.Relay.MasterSeed)

	r.GET("/health", statusHandler.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/campaigns", campaignHandler.GetCampaigns)
		api.GET("/campaigns/:id", campaignHandler.GetCampaign)
		api.GET("/campaigns/:id/donations", campaignHandler.GetCampaignDonations)
		api.POST("/campaigns/:id/wallet", walletHandler.ProvisionWallet)
		api.GET("/withdrawals", campaignHandler.GetWithdrawals)
		api.GET("/indexer/status", statusHandler.GetIndexerStatus)
	}

	return r
}
