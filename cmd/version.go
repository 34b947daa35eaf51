package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set from the embedded VERSION file or at link time.
var Version = "dev"

// ApplyVersion copies Version onto the root command so --version reports it.
func ApplyVersion() {
	rootCmd.Version = Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chronofix version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chronofix %s\n", Version)
	},
}

func init() {
	ApplyVersion()
	rootCmd.AddCommand(versionCmd)
}
