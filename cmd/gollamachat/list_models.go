// cmd/gollamachat/list_models.go
package gollamachat

import (
	"github.com/mwiater/gollamachat/models"
	"github.com/spf13/cobra"
)

// listModelsCmd implements 'list models', which enumerates the models on the
// configured host and marks the loaded ones and the chat model.
var listModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List all models on the configured host",
	Long:  `The 'models' subcommand lists the models installed on the configured host, marking models loaded in memory and the model used by 'chat'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, host, err := loadHost()
		if err != nil {
			return err
		}
		return models.List(cmd.Context(), cmd.OutOrStdout(), host, cfg.Model)
	},
}

func init() {
	listCmd.AddCommand(listModelsCmd)
}
