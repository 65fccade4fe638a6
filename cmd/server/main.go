package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/xanderslabs/Fundit/internal/chain"
	"github.com/xanderslabs/Fundit/internal/config"
	"github.com/xanderslabs/Fundit/internal/database"
	"github.com/xanderslabs/Fundit/internal/indexer"
	"github.com/xanderslabs/Fundit/internal/logger"
	"github.com/xanderslabs/Fundit/internal/router"
	"github.com/xanderslabs/Fundit/internal/scheduler"
)

func main() {
	cfg := config.Load()

	level := logger.ParseLogLevel(cfg.Log.Level)
	var log *logger.Logger
	var err error
	if cfg.Log.Output == "file" && cfg.Log.File != "" {
		log, err = logger.NewWithFileRotation(level, cfg.Log.File)
	} else {
		log, err = logger.New(level)
	}
	if err != nil {
		logger.Fatal("Failed to init logger: %v", err)
	}
	logger.SetDefaultLogger(log)

	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to init database: %v", err)
	}

	registry, err := chain.NewRegistry(cfg.Chains)
	if err != nil {
		logger.Fatal("Failed to init chain registry: %v", err)
	}
	defer registry.Close()

	blockScheduler := indexer.NewScheduler(registry, db, cfg.Indexer)

	manager, err := scheduler.NewManager(db, registry, blockScheduler, cfg)
	if err != nil {
		logger.Fatal("Failed to init task manager: %v", err)
	}
	manager.Start()
	defer manager.Stop()

	r := router.Setup(db, blockScheduler, cfg)
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("HTTP server listening on %s", addr)
		if err := r.Run(addr); err != nil {
			logger.Fatal("HTTP server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")
}
