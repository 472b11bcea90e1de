// cmd/gollamachat/config_show.go
package gollamachat

import (
	"fmt"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd groups configuration commands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Group commands for the configuration",
	Long:  `The 'config' command groups subcommands that inspect the effective configuration. It performs no action on its own.`,
}

// configShowCmd implements 'config show'.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `The 'show' subcommand prints the configuration after defaults, the config file, environment variables and flags are merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "Config file: %s\n", used)
		} else {
			fmt.Fprintln(out, "Config file: none (defaults and environment)")
		}
		_, err = pp.Fprintln(out, cfg)
		return err
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
