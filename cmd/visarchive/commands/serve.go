package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/viant/visual-archive/curator"
	"github.com/viant/visual-archive/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve search, curate and tag listing over HTTP.

The server starts even when no archive has been built yet; POST /v1/reload
picks up a new build without a restart.

Routes:
  GET  /healthz
  POST /v1/search   multipart: image, tags, k
  POST /v1/curate   multipart: image
  GET  /v1/tags
  POST /v1/reload`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return fmt.Errorf("failed to read 'addr' flag: %w", err)
		}
		if addr == "" {
			addr = globalConfig.Server.Addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, store, closeStore, err := openEngine(ctx, globalConfig, logger, true)
		if err != nil {
			return err
		}
		defer closeStore()

		cur := curator.New(engine, curator.WithTopK(globalConfig.Query.CompactTopK))
		handler := server.NewHandler(engine, cur, store, globalConfig.Query.TopK, logger)
		app := server.NewApp(handler, logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
		}()
		logger.WithField("addr", addr).Info("server listening")

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
