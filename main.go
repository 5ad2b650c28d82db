package main

import (
	"log"

	"invoicepay-backend/cmd"
	"invoicepay-backend/config"
	"invoicepay-backend/logger"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; in containers the environment is set directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute(cfg)
}
