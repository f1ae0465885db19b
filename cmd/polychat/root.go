package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/8agana/polychat/config"
	"github.com/8agana/polychat/logging"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

func (o *rootOptions) logger() logging.Logger {
	return logging.NewLogger(logging.ParseLevel(o.logLevel), o.logFormat, os.Stderr)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "polychat",
		Short:         "Chat with OpenAI, Anthropic, Grok, DeepSeek or Ollama models from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.toml (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(
		newChatCmd(opts),
		newHistoryCmd(opts),
		newTemplatesCmd(),
		newListModelsCmd(opts),
		newProvidersCmd(opts),
		newConfigPathCmd(),
		newInitConfigCmd(),
	)
	return cmd
}
