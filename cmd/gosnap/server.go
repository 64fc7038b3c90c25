package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gosnap/gosnap/internal/api"
	"github.com/gosnap/gosnap/internal/config"
	"github.com/gosnap/gosnap/internal/feedback"
	"github.com/gosnap/gosnap/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gosnap server (MCP on stdio, widget API on HTTP)",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		mcpOnly, _ := cmd.Flags().GetBool("mcp-only")
		return runServer(port, mcpOnly)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running gosnap server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gosnap server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "override the configured HTTP port")
	serveCmd.Flags().Bool("mcp-only", false, "serve MCP on stdio without the HTTP API")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "gosnap.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func openStore(cfg config.Config) (feedback.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return feedback.OpenSQLite(cfg.Storage.DataDir)
	default:
		return feedback.NewMemoryStore(), nil
	}
}

func runServer(portOverride int, mcpOnly bool) error {
	// Stdout belongs to the MCP stdio transport, so all diagnostics go
	// to stderr.
	fmt.Fprintf(os.Stderr, "gosnap version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if portOverride != 0 {
		cfg.Server.Port = portOverride
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", err)
		}
	}()
	slog.Info("store opened", "backend", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// MCP server on stdio. The agent that launched us owns the pipe; the
	// server runs until stdin closes or the context is canceled.
	mcpSrv := api.NewMCPServer(store, version)
	stdioSrv := server.NewStdioServer(mcpSrv)
	g.Go(func() error {
		err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	})
	slog.Info("MCP server started (stdio transport)")

	if !mcpOnly {
		// Check whether another instance already owns the port before
		// clobbering its PID file.
		pidPath := pidFilePath(cfg.Storage.DataDir)
		healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", cfg.Server.Port)
		healthClient := &http.Client{Timeout: 2 * time.Second}
		if resp, err := healthClient.Get(healthURL); err == nil {
			resp.Body.Close()
			if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
				printWarning("gosnap is already running (PID %d)", pid)
				return fmt.Errorf("server already running (PID %d)", pid)
			}
			printWarning("gosnap is already running on port %d", cfg.Server.Port)
			return fmt.Errorf("server already running on port %d", cfg.Server.Port)
		}
		if err := writePIDFile(pidPath); err != nil {
			return fmt.Errorf("writing PID file: %w", err)
		}
		defer removePIDFile(pidPath)

		handler := api.NewHTTPHandler(api.HTTPDeps{
			Store:            store,
			Dispatcher:       webhook.NewDispatcher(store, cfg.Limits.MaxBatchSize),
			MaxBodyBytes:     int64(cfg.Limits.MaxBodyBytes),
			MaxCommentLength: cfg.Limits.MaxCommentLength,
			AllowedOrigins:   cfg.Server.AllowedOrigins,
		})

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: handler,
		}

		g.Go(func() error {
			fmt.Fprintf(os.Stderr, "gosnap listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			fmt.Fprintln(os.Stderr, "shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("gosnap is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop gosnap (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to gosnap (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/api/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("PID", "%d", pid)
	}

	printStatus("Backend", "%s", cfg.Storage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
