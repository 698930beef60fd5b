// Command linesrv serves the newline-delimited echo protocol over TCP and,
// optionally, WebSocket, and includes a small interactive client.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbosity  int
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "linesrv",
		Short:        "Line-delimited request/response server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.toml, .yaml or .yml)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "raise log verbosity, can be repeated")

	root.AddCommand(
		serveCmd(),
		dialCmd(),
	)

	return root
}
