// Command taskschedd exposes scheduled-task management over HTTP and MCP.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CorreiaLuan/taskscheduler/internal/api"
	"github.com/CorreiaLuan/taskscheduler/internal/config"
	"github.com/CorreiaLuan/taskscheduler/internal/logging"
	taskmcp "github.com/CorreiaLuan/taskscheduler/internal/mcp"
	"github.com/CorreiaLuan/taskscheduler/internal/monitor"
	"github.com/CorreiaLuan/taskscheduler/internal/schtask"
	"github.com/CorreiaLuan/taskscheduler/internal/store"
)

func main() {
	cfg, err := config.ParseDaemon(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir, cfg.HistoryKeep)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.DB.Close()

	runner := &schtask.PowerShellRunner{Path: cfg.PowerShell}
	tasks := schtask.NewService(runner)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	var mon *monitor.Monitor
	if cfg.SnapshotCron != "" {
		mon, err = monitor.New(cfg.SnapshotCron, tasks, storeInst, logger)
		if err != nil {
			logger.Error("configure snapshot monitor", "err", err)
			os.Exit(1)
		}
		mon.Start(ctx)
	}

	switch cfg.Mode {
	case "http", "":
		runHTTPMode(cfg, storeInst, tasks, mon, logger)
	case "mcp":
		runMCPMode(storeInst, tasks, mon, logger, cancel)
	case "both":
		runBothMode(cfg, storeInst, tasks, mon, logger)
	default:
		logger.Error("invalid mode", "mode", cfg.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}
}

// runHTTPMode starts only the HTTP server.
func runHTTPMode(cfg *config.Config, storeInst *store.Store, tasks *schtask.Service, mon *monitor.Monitor, logger *slog.Logger) {
	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, tasks, storeInst, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	stopMonitor(mon, cfg.ShutdownGrace, logger)
}

// runMCPMode starts only the MCP server.
func runMCPMode(storeInst *store.Store, tasks *schtask.Service, mon *monitor.Monitor, logger *slog.Logger, cancel context.CancelFunc) {
	mcpServer := taskmcp.NewMCPServer(tasks, storeInst, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		cancel()
	}()

	// Serves on stdio until the client closes the stream.
	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
	stopMonitor(mon, defaultStopGrace, logger)
}

// runBothMode starts both HTTP and MCP servers.
func runBothMode(cfg *config.Config, storeInst *store.Store, tasks *schtask.Service, mon *monitor.Monitor, logger *slog.Logger) {
	mcpServer := taskmcp.NewMCPServer(tasks, storeInst, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, tasks, storeInst, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	stopMonitor(mon, cfg.ShutdownGrace, logger)

	logger.Info("shutdown complete")
}

const defaultStopGrace = 5 * time.Second

func stopMonitor(mon *monitor.Monitor, grace time.Duration, logger *slog.Logger) {
	if mon == nil {
		return
	}
	stopCtx := mon.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
		logger.Warn("snapshot monitor stop timed out")
	}
}
