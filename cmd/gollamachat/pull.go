// cmd/gollamachat/pull.go
package gollamachat

import (
	"github.com/spf13/cobra"
)

// pullCmd represents the 'pull' command group for pulling resources.
var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Group commands for pulling resources",
	Long:  `The 'pull' command groups subcommands that download resources to the configured host.`,
}

func init() {
	rootCmd.AddCommand(pullCmd)
}
