package main

import (
	"os"
	"os/signal"
	"syscall"

	"warden/internal/bot"
	"warden/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	rules, err := config.LoadRules(cfg.RulesPath, logger)
	if err != nil {
		logger.Fatal("rules load failed", zap.Error(err))
	}

	botSvc, err := bot.New(&cfg, rules, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.String("prefix", cfg.Prefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	if err := botSvc.Close(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
