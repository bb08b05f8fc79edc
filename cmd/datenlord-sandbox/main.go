// Command datenlord-sandbox serves a dlfs namespace over the HTTP wire
// protocol so SDK clients can be exercised without a DatenLord cluster.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "datenlord-sandbox",
		Short: "Local DatenLord filesystem service for development",
		Long: `datenlord-sandbox exposes an in-memory, host directory or SQLite backed
namespace over the same HTTP protocol the SDK speaks in http mode.

  datenlord-sandbox serve --addr 127.0.0.1:8765 --seed seed.json
  datenlord-sandbox serve --config sandbox.toml
  datenlord-sandbox config init sandbox.toml`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newConfigCmd())
	return root
}
