// cmd/gollamachat/unload_models.go
package gollamachat

import (
	"github.com/mwiater/gollamachat/models"
	"github.com/spf13/cobra"
)

// unloadModelsCmd represents the 'unload models' subcommand.
var unloadModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Unload all loaded models on the configured host",
	Long:  `The 'models' subcommand unloads every model currently held in memory by the configured host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, host, err := loadHost()
		if err != nil {
			return err
		}
		return models.Unload(cmd.Context(), cmd.OutOrStdout(), host)
	},
}

// init adds the unloadModelsCmd to the unload command.
func init() {
	unloadCmd.AddCommand(unloadModelsCmd)
}
