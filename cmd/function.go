package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/spf13/cobra"
	"invoiceapi/internal/logger"
)

// FunctionName is the HTTP function target registered with the framework.
const FunctionName = "ExtractInvoice"

var functionCmd = &cobra.Command{
	Use:   "function",
	Short: "Run as a Cloud Functions HTTP target",
	Long: `Register the HTTP API as the ExtractInvoice function and start the
Functions Framework on $PORT (default 8080). Routes are the same as serve.`,
	Args: cobra.NoArgs,
	RunE: runFunction,
}

func init() {
	rootCmd.AddCommand(functionCmd)
}

func runFunction(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("function")

	srv, deps, err := newHTTPServer(context.Background(), appConfig)
	if err != nil {
		return err
	}
	defer deps.Close()

	functions.HTTP(FunctionName, srv.Handler().ServeHTTP)

	// With a target set the framework mounts it at "/" so the router sees
	// the original paths.
	if os.Getenv("FUNCTION_TARGET") == "" {
		if err := os.Setenv("FUNCTION_TARGET", FunctionName); err != nil {
			return fmt.Errorf("set FUNCTION_TARGET: %w", err)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().
		Str("target", FunctionName).
		Str("port", port).
		Msg("Starting Functions Framework")

	if err := funcframework.Start(port); err != nil {
		return fmt.Errorf("funcframework.Start: %w", err)
	}
	return nil
}
