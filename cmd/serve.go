package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spigell/candidate-matcher/internal/logger"
	"github.com/spigell/candidate-matcher/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking HTTP API",
	// analysis.enabled is shared with rank, so the flag is bound only for the command that runs.
	PreRun: func(cmd *cobra.Command, _ []string) {
		viper.BindPFlag("analysis.enabled", cmd.Flags().Lookup("analyze"))
	},
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "address to listen on")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Bool("analyze", false, "allow requests to enable feature analysis")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	embedder, analyzer, err := newAIBackends(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating ai clients", zap.Error(err))
	}

	srv := server.New(embedder, analyzer, server.Defaults{
		Weights:      config.Weights,
		TopK:         config.TopK,
		MinimumScore: config.MinimumScore,
		Concurrency:  config.Concurrency,
	}, config.Server, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down the server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}
}
