package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rorygraves/clientserverrunner-mcp/internal/bootstrap"
	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
)

func newImportTOMLCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import-toml <file.toml>",
		Short: "Import a TOML bootstrap file as a new configuration",
		Long: `import-toml reads a static TOML file describing a configuration's
applications and writes it into the configuration store as a new document,
printing the assigned configuration id.

Example:
  clientserverrunner import-toml stack.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := configstore.New(gf.dataDir)
			if err != nil {
				return fmt.Errorf("open configuration store: %w", err)
			}
			id, err := bootstrap.Import(configs, args[0])
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Println(id)
			return nil
		},
	}
}
