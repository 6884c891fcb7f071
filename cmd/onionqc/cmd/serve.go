package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/config"
	"github.com/MeKo-Tech/onionqc/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for onion quality analysis",
	Long: `Start an HTTP server that provides REST and WebSocket endpoints for
onion quality analysis.

The server provides the following endpoints:
  GET  /health         - Health check endpoint
  GET  /metrics        - Prometheus metrics
  GET  /model/status   - Model lifecycle state
  POST /model/load     - Load the classifier model
  POST /analyze/image  - Analyse one uploaded image (field "image")
  POST /analyze/batch  - Analyse several uploaded images (field "images")
  GET  /ws/analyze     - WebSocket analysis with progress updates

Examples:
  onionqc serve
  onionqc serve --port 8080
  onionqc serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

// serverFlags maps serve flags onto their config fields.
func serverFlags(sc *config.ServerConfig) (strs map[string]*string, ints map[string]*int, bools map[string]*bool) {
	strs = map[string]*string{
		"host":        &sc.Host,
		"cors-origin": &sc.CORSOrigin,
	}
	ints = map[string]*int{
		"port":                 &sc.Port,
		"max-upload-size":      &sc.MaxUploadMB,
		"max-batch-images":     &sc.MaxBatchImages,
		"timeout":              &sc.TimeoutSec,
		"shutdown-timeout":     &sc.ShutdownTimeout,
		"requests-per-minute":  &sc.RequestsPerMinute,
		"requests-per-hour":    &sc.RequestsPerHour,
		"max-requests-per-day": &sc.MaxRequestsPerDay,
		"max-data-per-day":     &sc.MaxDataPerDayMB,
	}
	bools = map[string]*bool{
		"rate-limit-enabled": &sc.RateLimitEnabled,
	}
	return strs, ints, bools
}

// applyServerFlags copies changed serve flags onto cfg.
func applyServerFlags(cfg *config.Config, cmd *cobra.Command) {
	strs, ints, bools := serverFlags(&cfg.Server)
	for name, dst := range strs {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	for name, dst := range ints {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetInt(name)
		}
	}
	for name, dst := range bools {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetBool(name)
		}
	}
}

func toServerConfig(sc config.ServerConfig) server.Config {
	return server.Config{
		CORSOrigin:     sc.CORSOrigin,
		MaxUploadMB:    int64(sc.MaxUploadMB),
		MaxBatchImages: sc.MaxBatchImages,
		TimeoutSec:     sc.TimeoutSec,
		RateLimit: server.RateLimitConfig{
			Enabled:           sc.RateLimitEnabled,
			RequestsPerMinute: sc.RequestsPerMinute,
			RequestsPerHour:   sc.RequestsPerHour,
			MaxRequestsPerDay: sc.MaxRequestsPerDay,
			MaxDataPerDayMB:   int64(sc.MaxDataPerDayMB),
		},
	}
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyModelFlags(cfg, cmd)
	applyServerFlags(cfg, cmd)
	sc := cfg.Server

	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}
	preload, _ := cmd.Flags().GetBool("preload")

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	analyzer, err := newEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() { _ = analyzer.Close() }()

	analysisCache, err := newAnalysisCache(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	qcServer := server.NewServer(analyzer, toServerConfig(sc),
		server.WithCache(analysisCache),
		server.WithPublisher(newPublisher(cfg)),
		server.WithLogger(slog.Default()),
	)

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           qcServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	if preload {
		go func() {
			if _, err := analyzer.LoadModel(ctx); err != nil {
				slog.Warn("Model preload failed; load it via POST /model/load", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting onionqc server", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = qcServer.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received", "timeout", time.Duration(sc.ShutdownTimeout)*time.Second)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := qcServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	cmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	cmd.Flags().Int("max-batch-images", 50, "maximum images per batch request")
	cmd.Flags().Int("timeout", 30, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	cmd.Flags().Bool("preload", true, "load the model in the background at startup")
	cmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	cmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	cmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	cmd.Flags().Int("max-requests-per-day", 10000, "maximum requests per day per client")
	cmd.Flags().Int("max-data-per-day", 1024, "maximum upload volume per day per client (MB)")
	addModelFlags(cmd)
}
