// cmd/gollamachat/pull_models.go
package gollamachat

import (
	"github.com/mwiater/gollamachat/models"
	"github.com/spf13/cobra"
)

// pullModelsCmd implements 'pull models', which downloads the named models,
// or the chat model when none are named.
var pullModelsCmd = &cobra.Command{
	Use:   "models [name...]",
	Short: "Pull models to the configured host",
	Long:  `The 'models' subcommand pulls the named models to the configured host. Without arguments it pulls the configured chat model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, host, err := loadHost()
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = []string{cfg.Model}
		}
		return models.Pull(cmd.Context(), cmd.OutOrStdout(), host, names...)
	},
}

func init() {
	pullCmd.AddCommand(pullModelsCmd)
}
