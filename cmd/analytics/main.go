// Command analytics runs the strategic analytics engine from the command
// line: offline over a JSON snapshot, or against the database.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "analytics",
		Short:         "Strategic analytics for school networks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (json, text)")

	root.AddCommand(analyzeCmd(), fingerprintCmd(), policyCmd(), reportCmd(), migrateCmd())
	return root
}
