package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags holds the persistent flags shared across every subcommand.
type globalFlags struct {
	dataDir   string
	logLevel  string
	logFile   string
	historyDB string
}

func buildRoot() *cobra.Command {
	gf := &globalFlags{}

	root := &cobra.Command{
		Use:   "clientserverrunner",
		Short: "Local process supervisor exposed over MCP and HTTP",
		Long: `clientserverrunner starts, stops, and supervises a configuration of
local applications with dependency-ordered start/stop, port allocation,
health checking, log capture, and auto-restart with backoff.

Examples:
  clientserverrunner serve
  clientserverrunner serve --http-addr=:8080
  clientserverrunner import-toml stack.toml`,
	}

	root.PersistentFlags().StringVar(&gf.dataDir, "data-dir", defaultDataDir(), "directory for configurations, logs, and history")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&gf.logFile, "log-file", "", "write logs to this file instead of stderr")
	root.PersistentFlags().StringVar(&gf.historyDB, "history-db", "", "path to the SQLite lifecycle history database (disabled if unset)")

	root.AddCommand(
		newServeCommand(gf),
		newImportTOMLCommand(gf),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func defaultDataDir() string {
	if d, err := os.UserHomeDir(); err == nil {
		return d + "/.clientserverrunner"
	}
	return "./.clientserverrunner"
}
