package lexigraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/lexigraph"
	"github.com/soundprediction/lexigraph/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lexigraph HTTP server",
	Long: `Start the lexigraph HTTP server.

The server provides endpoints for:
- Peer collaboration requests (POST /a2a/:domain)
- Health, liveness and readiness checks
- Prometheus metrics

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServe,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	logger, flush := newLogger(cfg, os.Stderr)
	defer flush.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := lexigraph.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize lexigraph: %w", err)
	}
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	logger.Info("Lexigraph initialized",
		"driver", cfg.Database.Driver,
		"domains", engine.DomainCount(ctx),
		"transport", cfg.A2A.Transport)

	srv := server.New(cfg, engine, logger)
	srv.Setup()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "cause", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("Server stopped gracefully")
		return nil
	})
	return g.Wait()
}

const shutdownTimeout = 30 * time.Second
