package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"invoiceapi/internal/config"
	"invoiceapi/internal/logger"
	"invoiceapi/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the HTTP API with the following routes:

  POST /extract-invoice  {"documentKey": "..."} or {"s3Key": "..."}
  POST /presigned-url    {"fileName": "...", "contentType": "..."}
  GET  /health

Documents are read from the configured store (STORAGE_BACKEND=gcs|local).`,
	Example: `  # Serve on the configured address (SERVER_ADDR, default :8080)
  invoiceapi serve

  # Serve documents from a local directory on another port
  STORAGE_BACKEND=local LOCAL_STORAGE_DIR=./documents invoiceapi serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: SERVER_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = appConfig.ServerAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, deps, err := newHTTPServer(ctx, appConfig)
	if err != nil {
		return err
	}
	defer deps.Close()

	log.Info().Str("addr", addr).Msg("Starting invoice API")
	return srv.Run(ctx, addr)
}

// newHTTPServer builds the pipeline and the router around it.
func newHTTPServer(ctx context.Context, cfg *config.Config) (*server.Server, *dependencies, error) {
	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := buildDependencies(ctx, cfg, true)
	if err != nil {
		return nil, nil, err
	}

	srv := server.NewServer(deps.orchestrator, deps.presigner(), server.Options{
		RequestTimeout: cfg.RequestTimeout,
		AllowOrigin:    cfg.CORSAllowOrigin,
	})
	return srv, deps, nil
}
