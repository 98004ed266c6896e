package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"schoolmail/internal/config"
	"schoolmail/internal/handler"
	"schoolmail/internal/httpserver"
	"schoolmail/internal/repository"
	"schoolmail/internal/service/auth"
	"schoolmail/internal/service/triage"
	"schoolmail/pkg/db"
	"schoolmail/pkg/logger"
)

func main() {
	configDir := flag.String("config", "config", "config directory")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configDir)
	if err != nil {
		panic(err)
	}

	logger := logger.NewLogger()
	defer logger.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn)
	userItemRepo := repository.NewUserItemRepository(dbConn)

	// Init Services
	authService := auth.NewService(userRepo, cfg.JWT.Secret, logger)
	triageService := triage.NewService(userItemRepo, logger)

	// Init Handlers
	authHandler := handler.NewAuthHandler(authService, logger)
	triageHandler := handler.NewTriageHandler(triageService, logger)

	// Router
	router := httpserver.NewRouter(authHandler, triageHandler, cfg.JWT.Secret, dbConn)

	// Start server
	logger.Info("Starting triage api", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
