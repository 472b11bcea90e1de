// cmd/gollamachat/sync_models.go
package gollamachat

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/gollamachat/models"
)

// syncModelsCmd implements 'sync models', which pulls the chat model when the
// host does not have it yet.
var syncModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Make sure the chat model is installed",
	Long:  `The 'models' subcommand checks the configured host for the chat model and pulls it when it is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, host, err := loadHost()
		if err != nil {
			return err
		}
		return models.Sync(cmd.Context(), cmd.OutOrStdout(), host, cfg.Model)
	},
}

func init() {
	syncCmd.AddCommand(syncModelsCmd)
}
