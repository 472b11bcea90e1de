// cmd/gollamachat/chat.go

package gollamachat

import (
	"github.com/mwiater/gollamachat/cli"
	"github.com/spf13/cobra"
)

// startGUI is replaced in tests.
var startGUI = cli.StartGUI

// chatCmd represents the 'chat' command.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a chat session",
	Long: `The 'chat' command starts an interactive chat session with the configured model.
Saved history is restored first. Type the exit command (default "exit") or press esc to save and quit; ctrl+l clears the conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return startGUI(cfg, logger)
	},
}

// init adds the chat command to the root command.
func init() {
	rootCmd.AddCommand(chatCmd)
}
