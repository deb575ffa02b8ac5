package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("http", "", "Address to listen on (default: $HTTP_ADDR, :$PORT or :3000)")
	rootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("http"); addr != "" {
		cfg.HTTPAddr = addr
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	metrics := NewMetrics()
	store, closeStore, err := openStore(ctx, cfg, WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer closeStore()

	usage := NewUsageDoc(cfg.OASFile)
	if err := usage.Watch(ctx); err != nil {
		logger.WarnContext(ctx, "Not watching API description", "path", cfg.OASFile, "err", err)
	}

	var limiter *clientLimiter
	if cfg.RateLim.RPS > 0 {
		limiter = newClientLimiter(cfg.RateLim.RPS, cfg.RateLim.Burst, 10*time.Minute)
		go limiter.Run(ctx)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(NewHandler(store, usage, logger), metrics, limiter, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		logger.InfoContext(ctx, "server is listening", "addr", server.Addr, "data_dir", cfg.DataDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("server is shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
