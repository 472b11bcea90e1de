// cmd/gollamachat/delete.go

package gollamachat

import (
	"github.com/spf13/cobra"
)

// deleteCmd represents the 'delete' command.
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Group commands for deleting resources",
	Long:  `The 'delete' command is used to group subcommands that remove resources from the configured host.`,
}

// init adds the delete command to the root command.
func init() {
	rootCmd.AddCommand(deleteCmd)
}
