package main

import (
	"flag"
	"log"
	"os"

	"ForecastDesk/internal/di"
	"ForecastDesk/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s backend=%s price_feed=%s", cfg.Environment, cfg.Workflow.BackendBaseURL, cfg.Workflow.PriceFeedBaseURL)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	if cfg.Redis.Enabled {
		log.Printf("redis: addr=%s prefix=%s", cfg.Redis.Addr, cfg.Redis.Prefix)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
