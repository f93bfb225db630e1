package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scan server",
		Long: `Start an HTTP server that scans uploaded images.

The server provides the following endpoints:
  POST   /api/v1/scan         - Scan an uploaded image (multipart field "image")
  POST   /api/v1/scan/cancel  - Cancel the running scan
  GET    /api/v1/history      - List recorded scans
  DELETE /api/v1/history      - Clear recorded scans
  GET    /ws/live             - WebSocket for live camera detections
  GET    /health              - Health check endpoint
  GET    /metrics             - Prometheus metrics

Examples:
  qrscan serve
  qrscan serve --port 8080
  qrscan serve --host 0.0.0.0 --port 3000 --rate-limit-rps 2`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	cmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	cmd.Flags().Float64("rate-limit-rps", 5, "scan uploads per second per client (0 disables)")
	cmd.Flags().Int("rate-limit-burst", 10, "scan upload burst per client")
	cmd.Flags().Bool("preempt", false, "cancel a running scan instead of rejecting a new one")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg := *a.cfg
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("rate-limit-rps") {
		cfg.Server.RateLimitRPS, _ = flags.GetFloat64("rate-limit-rps")
	}
	if flags.Changed("rate-limit-burst") {
		cfg.Server.RateLimitBurst, _ = flags.GetInt("rate-limit-burst")
	}
	if flags.Changed("preempt") {
		cfg.Scan.Preempt, _ = flags.GetBool("preempt")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stages, err := cfg.BuildStages()
	if err != nil {
		return err
	}
	scfg, err := cfg.ToScanConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeHistory(store)

	srv, err := server.NewServer(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Scan:           scfg,
	}, stages, store)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting scan server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	// Cancel the running scan first so its request can finish.
	_ = srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
