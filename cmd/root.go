package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"invoiceapi/internal/config"
	"invoiceapi/internal/logger"
)

var version = "1.0.0"

// appConfig is populated before any subcommand runs.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "invoiceapi",
	Short: "Invoice API - extract structured data from PDF invoices",
	Long: `Invoice API extracts the text layer of PDF invoices and asks an LLM
to turn it into a structured invoice record with its shipment lines.

It runs as an HTTP service (serve), as a Cloud Functions entry point
(function), or directly on local files (extract).`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Invoice API CLI executed")

		fmt.Println("Welcome to Invoice API!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default: $"+config.ConfigFileEnv+")")
}

// loadConfig reads the configuration once and reconfigures the logger from it.
func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.ConfigFileEnv)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appConfig = cfg
	return nil
}
