package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s)\n",
			binaryName, versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
