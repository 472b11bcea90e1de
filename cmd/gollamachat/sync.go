// cmd/gollamachat/sync.go
package gollamachat

import (
	"github.com/spf13/cobra"
)

// syncCmd represents the 'sync' command group.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Group commands for syncing resources",
	Long:  `The 'sync' command groups subcommands that bring the configured host in line with the configuration.`,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
