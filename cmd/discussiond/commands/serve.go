package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roundtable/engine/internal/config"
	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discussiond HTTP/SSE server",
	Long: `Start discussiond as a server exposing an HTTP API and
Server-Sent Events stream that observer clients use to create, drive
and watch discussion sessions.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Address to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(dir)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		appConfig.Server.Addr = serveAddr
	}

	ctx := context.Background()
	mgr, err := newManager(ctx, appConfig)
	if err != nil {
		return err
	}

	serverCfg := server.FromAppConfig(appConfig)
	srv := server.New(serverCfg, mgr)

	go func() {
		logging.Info().Str("addr", serverCfg.Addr).Msg("discussiond listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down discussiond")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("discussiond stopped")
	return nil
}
