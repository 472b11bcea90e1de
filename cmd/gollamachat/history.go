// cmd/gollamachat/history.go
package gollamachat

import (
	"fmt"
	"strings"

	"github.com/mwiater/gollamachat/conversation"
	"github.com/mwiater/gollamachat/store"
	"github.com/spf13/cobra"
)

// historyCmd groups commands that work on the saved conversation.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Group commands for the saved conversation",
	Long:  `The 'history' command groups subcommands that read or remove the conversation saved by 'chat'. It performs no action on its own.`,
}

// historyShowCmd implements 'history show'.
var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved conversation",
	Long:  `The 'show' subcommand prints the saved conversation one turn at a time, oldest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.New(cfg.History, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		history, err := st.Load(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if history == "" {
			fmt.Fprintf(out, "No saved history in %s.\n", st.Location())
			return nil
		}
		turns, ok := conversation.ParseTranscript(history)
		if !ok {
			fmt.Fprintln(out, strings.TrimPrefix(history, "\n"))
			return nil
		}
		for i, t := range turns {
			fmt.Fprintf(out, "[%d] User: %s\n    AI: %s\n", i+1, t.Question, t.Answer)
		}
		return nil
	},
}

// historyClearCmd implements 'history clear'.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved conversation",
	Long:  `The 'clear' subcommand removes the saved conversation so the next chat starts empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.New(cfg.History, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared history in %s.\n", st.Location())
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
