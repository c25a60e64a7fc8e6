package main

import (
	"BatteryDetect/internal/config"
	"BatteryDetect/pkg/batteryapi"
	"BatteryDetect/pkg/log"
	"BatteryDetect/pkg/redis"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// .env must be loaded before the logger reads APP_ENV and LOG_LEVEL.
	envErr := godotenv.Load()

	logger := log.NewLogger()
	if envErr != nil {
		logger.Warnf("No .env file loaded, using process environment: %v", envErr)
	}

	validator := config.NewValidator()
	cfg, err := config.LoadAppConfig(validator)
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger, cfg)
	sessionStore := redis.New(redis.Options{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.SessionTTL,
		Prefix:   "battery-web",
	})
	batteryAPI := batteryapi.New(cfg.APIBaseURL, nil, logger)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithAppConfig(cfg),
		config.WithSessionStore(sessionStore),
		config.WithBatteryAPI(batteryAPI),
		config.WithLocale(),
		config.WithUtils(),
		config.WithMiddleware(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	go server.CheckBackend(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s (api %s, locale %s)", cfg.Port, cfg.APIBaseURL, cfg.Locale)

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(cfg.AnalyzeTimeout + 5*time.Second); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
