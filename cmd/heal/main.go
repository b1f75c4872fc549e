package main

import (
	"os"

	"github.com/0xSaurabhSharma/code-correction-agent/pkg/config"
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "heal",
		Short:        "Run Go functions and repair them when they fail",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yml (defaults to $HEAL_CONFIG or ./config.yml)")

	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newMemoryCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
