package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhoini/subscription-commerce/internal/app"
	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.ParseLevel(cfg.App.LogLevel), cfg.App.Env)
	defer func() { _ = log.Sync() }()

	// Установка режима Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}

	runErr := application.Run(ctx)
	application.Close()
	if runErr != nil {
		log.Fatalw("Server stopped with error", "error", runErr)
	}
	log.Infow("Server exited properly")
}
