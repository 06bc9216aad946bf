// Command framedsock serves and exercises delimiter-framed socket connections.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "framedsock",
		Short:         "Delimiter-framed stream socket server and client",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		serveCmd(),
		sendCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
