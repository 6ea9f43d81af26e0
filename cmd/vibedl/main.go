package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/vibedl/vibedl/internal/api"
	"github.com/vibedl/vibedl/internal/app"
	"github.com/vibedl/vibedl/internal/downloader"
	"github.com/vibedl/vibedl/internal/extractor"
	"github.com/vibedl/vibedl/internal/infra/config"
	"github.com/vibedl/vibedl/internal/infra/logger"
	"github.com/vibedl/vibedl/internal/jobs"
	"github.com/vibedl/vibedl/internal/platform"
	"github.com/vibedl/vibedl/internal/store"
)

const version = "1.0.0"

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "vibedl",
		Short:         "Video download API with async job tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}

	if err := platform.ValidateDependencies(cfg.Extractor.YtdlpPath, cfg.Extractor.FfmpegPath); err != nil {
		return err
	}

	if err := platform.PrepareDirs(cfg.Download.Dir, cfg.Download.TempDir); err != nil {
		return fmt.Errorf("failed to prepare directories: %w", err)
	}

	appCtx := app.NewContext(cfg, log, version)
	appCtx.Registry = jobs.NewRegistry()
	appCtx.Extractor = extractor.New(cfg, log)

	var history *store.PersistentStore
	if st, err := store.NewPersistentStore(cfg.Store.SQLitePath); err != nil {
		// The service runs fine without durable history; the registry
		// and artifacts are what the API contract depends on.
		log.Warn("history store unavailable: %v", err)
	} else {
		history = st
		appCtx.History = st
		defer st.Close()
	}

	appCtx.Downloads = downloader.NewService(appCtx)

	sweeper := jobs.NewSweeper(
		[]string{cfg.Download.Dir, cfg.Download.TempDir},
		cfg.Download.Retention,
		cfg.Download.SweepInterval,
		appCtx.Registry,
		log,
	)
	if history != nil {
		sweeper = sweeper.WithHistory(history, cfg.Store.HistoryRetention)
	}

	// Setup Signal Handling for Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Test the proxy on startup so a bad key shows up in the logs before
	// the first download fails.
	probeCtx, cancel := context.WithTimeout(ctx, cfg.Proxy.Timeout)
	if _, err := appCtx.Extractor.CheckProxy(probeCtx); err != nil {
		log.Warn("proxy check failed, downloads may not work: %v", err)
	} else {
		log.Info("proxy connection successful")
	}
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	e := echo.New()
	api.RegisterRoutes(e, appCtx)

	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	srv := &http.Server{Addr: addr, Handler: e}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("vibedl %s listening on %s", version, addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			wg.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown: %v", err)
	}

	// The sweeper is joined, not abandoned: it stops on the same context.
	wg.Wait()

	log.Info("shutdown complete")
	return nil
}
