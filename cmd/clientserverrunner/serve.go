package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/historystore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/httpserver"
	"github.com/rorygraves/clientserverrunner-mcp/internal/logging"
	"github.com/rorygraves/clientserverrunner-mcp/internal/mcpserver"
	"github.com/rorygraves/clientserverrunner-mcp/internal/runtime"
)

type serveFlags struct {
	httpAddr string
	basePath string
}

func newServeCommand(gf *globalFlags) *cobra.Command {
	sf := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control surface (MCP over stdio, and HTTP if --http-addr is set)",
		Long: `serve starts the MCP control surface over stdio and, when --http-addr is
given, also mirrors every verb over HTTP alongside a Prometheus /metrics
endpoint.

Examples:
  clientserverrunner serve
  clientserverrunner serve --http-addr=127.0.0.1:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(gf, sf)
		},
	}
	cmd.Flags().StringVar(&sf.httpAddr, "http-addr", "", "also serve the control surface and /metrics over HTTP on this address")
	cmd.Flags().StringVar(&sf.basePath, "http-base-path", "/api", "base path for the HTTP control surface")
	return cmd
}

func runServe(gf *globalFlags, sf *serveFlags) error {
	log := logging.New(logging.Config{Level: gf.logLevel, File: gf.logFile})

	configs, err := configstore.New(gf.dataDir)
	if err != nil {
		return fmt.Errorf("open configuration store: %w", err)
	}

	mgr := runtime.New(gf.dataDir, configs, log)

	if gf.historyDB != "" {
		h, err := historystore.Open(gf.historyDB)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer func() { _ = h.Close() }()
		mgr.SetHistory(h)
	}

	var httpSrv interface{ Close() error }
	if sf.httpAddr != "" {
		httpSrv = httpserver.NewServer(sf.httpAddr, sf.basePath, configs, mgr)
		log.Info("http control surface listening", "addr", sf.httpAddr, "base_path", sf.basePath)
	}

	srv := mcpserver.New("clientserverrunner", version, configs, mgr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Warn("mcp server exited", "err", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down, draining managed applications")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	mgr.Shutdown(shutdownCtx)

	if httpSrv != nil {
		_ = httpSrv.Close()
	}
	return nil
}
