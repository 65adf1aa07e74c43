package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpolishuk/codesense/internal/api"
	"github.com/spf13/cobra"
)

var (
	servePort            string
	serveShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for analysis runs, entity browsing, duplicate listing,
semantic search, document ingestion, chat and Prometheus metrics on /metrics.

Examples:
  codesense serve
  codesense serve --port 8090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from server.port)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewHandler(api.Options{
		Pipeline:            a.pipeline,
		Scanner:             a.scanner,
		Checkouts:           a.checkouts,
		Graph:               a.graph,
		Project:             cfg.Neo4j.Project,
		StructuralThreshold: cfg.Similarity.StructuralThreshold,
	}, logger)
	defer handler.Close()
	app := api.NewApp(handler)

	port := servePort
	if port == "" {
		port = cfg.Server.Port
	}
	addr := ":" + port

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Starting server")
		serverErr <- app.Listen(addr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.WithField("signal", sig.String()).Info("Received shutdown signal")
		if err := app.ShutdownWithTimeout(serveShutdownTimeout); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}
