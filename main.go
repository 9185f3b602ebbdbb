package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/mailer"
	"backend/internal/repository"
	"backend/internal/server"
	"backend/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/config.yml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection; the database container may still be starting up.
	db, err := repository.NewPostgresDB(cfg.Database.URL, 30, 5*time.Second, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	repoLog := logrus.New()
	userRepo := repository.NewUserRepository(db, repoLog)

	mail := mailer.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port,
		cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, logger)

	// Create the configured admin account on first run.
	userService := service.NewUserService(userRepo, mail, logger,
		cfg.Auth.MinPasswordLength, cfg.Auth.BcryptCost)
	if err := userService.BootstrapAdmin(cfg.Bootstrap.AdminUsername,
		cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminEmail); err != nil {
		logger.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	// Initialize and run the server
	srv := server.NewServer(db, cfg, logger, repoLog, mail)
	srv.Run(cfg.Server.Port)
}
