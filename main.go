package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"invoiceapi/cmd"
	"invoiceapi/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Console logging until the command loads its configuration
	if err := logger.Setup(logger.DefaultConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
	os.Exit(0)
}
