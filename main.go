// @title Tryout Simulator API
// @version 1.0
// @description Backend for the timed multi-section tryout exam simulator.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"log"

	"tryout_backend/internal/app"
	"tryout_backend/internal/config"
	"tryout_backend/pkg/configwatcher"
	"tryout_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// Hot-applies token and exam tuning changes; structural settings (ports,
	// database) need a restart.
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		application.Config.JWT = newCfg.JWT
		application.Config.Exam = newCfg.Exam
		logger.Log.Info("Configuration reloaded")
	})

	application.Run()
}
