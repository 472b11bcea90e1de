// cmd/gollamachat/unload.go
package gollamachat

import (
	"github.com/spf13/cobra"
)

// unloadCmd represents the 'unload' command group.
var unloadCmd = &cobra.Command{
	Use:   "unload",
	Short: "Group commands for unloading resources",
	Long:  `The 'unload' command groups subcommands that free memory on the configured host.`,
}

func init() {
	rootCmd.AddCommand(unloadCmd)
}
