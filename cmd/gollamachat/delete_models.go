// cmd/gollamachat/delete_models.go

package gollamachat

import (
	"github.com/mwiater/gollamachat/models"
	"github.com/spf13/cobra"
)

// deleteModelsCmd represents the 'delete models' subcommand.
var deleteModelsCmd = &cobra.Command{
	Use:   "models name...",
	Short: "Delete the named models from the configured host",
	Long:  `The 'models' subcommand deletes each named model from the configured host.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, host, err := loadHost()
		if err != nil {
			return err
		}
		return models.Delete(cmd.Context(), cmd.OutOrStdout(), host, args...)
	},
}

// init adds the deleteModelsCmd to the deleteCmd.
func init() {
	deleteCmd.AddCommand(deleteModelsCmd)
}
