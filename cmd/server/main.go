package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tracking-server/internal/engine"
	"tracking-server/internal/network"
	"tracking-server/internal/server"
	"tracking-server/internal/version"
	"tracking-server/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func init() {
	// .env необязателен: в проде переменные приходят из окружения
	_ = godotenv.Load()
	logger.Init()
}

func main() {
	// 1. Конфигурация: значения по умолчанию -> окружение -> флаги
	cfg := engine.NewConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		logger.Log.WithError(err).Fatal("Invalid environment")
	}

	var policy string
	flag.DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "Delay before an offline participant is removed")
	flag.DurationVar(&cfg.HardTimeout, "hard-timeout", cfg.HardTimeout, "Inactivity bound enforced by the sweep")
	flag.DurationVar(&cfg.SweepInterval, "sweep", cfg.SweepInterval, "Sweep interval")
	flag.DurationVar(&cfg.UpdateInterval, "update-interval", cfg.UpdateInterval, "Location cadence advertised to clients")
	flag.StringVar(&policy, "offline-policy", string(cfg.OfflinePolicy), "Disconnect handling: soft | hard")
	flag.BoolVar(&cfg.EchoToSender, "echo-self", cfg.EchoToSender, "Send location broadcasts back to their origin")
	flag.BoolVar(&cfg.SupersedeOffline, "supersede-offline", cfg.SupersedeOffline, "Remove offline tabs of a session as soon as it reconnects")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for generated display names")
	flag.Parse()

	p, err := engine.ParseOfflinePolicy(policy)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid -offline-policy")
	}
	cfg.OfflinePolicy = p

	if err := cfg.Validate(); err != nil {
		logger.Log.WithError(err).Fatal("Invalid configuration")
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	logger.Log.Info("Starting tracking server...")
	logger.Log.Info(version.String())

	// 2. Ядро: хаб рассылки и сервис присутствия
	hub := network.NewHub()
	service := engine.NewService(cfg, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go service.Run(ctx)

	// 3. Запуск сервера
	srv := server.New(service, hub, port)
	go func() {
		if err := srv.Run(); err != nil {
			logger.Log.WithError(err).Fatal("Server start error")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	logger.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("HTTP shutdown incomplete")
	}

	<-service.Done()
	hub.Close()

	logger.Log.WithFields(logrus.Fields{
		"dropped_messages": hub.Dropped(),
	}).Info("Done.")
}
