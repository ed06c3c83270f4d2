package main

import (
	"github.com/spf13/cobra"
	"github.com/vitos/trailing_trade_client/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tradeclient",
	Short: "Client for the trailing-stop trading bot",
	Long: `tradeclient sizes a trade from capital, leverage and stop, submits it to
the trailing-stop bot and follows it until the bot closes it.

Commands:
  run     start the monitor and the local dashboard API
  calc    print the risk snapshot for a trade
  ladder  print the trailing ladder for an entry and stop`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to YAML config")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
