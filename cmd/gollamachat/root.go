// cmd/gollamachat/root.go
package gollamachat

import (
	"context"
	"fmt"
	"os"

	"github.com/mwiater/gollamachat/config"
	"github.com/mwiater/gollamachat/logging"
	"github.com/mwiater/gollamachat/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cfgFile is the value of the persistent --config flag.
var cfgFile string

// rootCmd is the base Cobra command for the gollamachat application.
// All subcommands are attached to this root to form the complete CLI.
var rootCmd = &cobra.Command{
	Use:   "gollamachat",
	Short: "Chat with a locally hosted language model",
	Long: `gollamachat is a terminal chat client for a language model served by Ollama or LM Studio.
The conversation is kept as a running transcript that is sent with every question and saved between runs.`,
	SilenceUsage: true,
}

// Execute runs the root Cobra command and all registered subcommands.
// It prints any returned error and exits the process with a non-zero
// status code on failure.
func Execute() {
	defer logging.Sync()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.config/gollamachat/config.yaml)")
	rootCmd.PersistentFlags().String("model", "", "model to chat with, overrides the config file")
	rootCmd.PersistentFlags().String("host", "", "URL of the model host, overrides the config file")
	viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag("host.url", rootCmd.PersistentFlags().Lookup("host"))
}

// initConfig reads in the config file and GOLLAMACHAT_* environment variables.
func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig validates the settings and starts the file logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// loadHost returns the configuration together with the configured model host.
func loadHost() (*config.Config, models.LLMHost, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	host, err := models.NewHost(cfg.Host, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, host, nil
}
