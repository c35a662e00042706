package main

import (
	"log" // Use standard log only for fatal errors before the logger is set up

	"tradejournal/config"
	"tradejournal/internal/cli"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Run the command tree; each command wires its own logger, repository and service
	cli.Execute(cfg)
}
