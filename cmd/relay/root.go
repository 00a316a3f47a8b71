package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagBaseURL  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Resilient request client with credential renewal and classified retries",
	Long: `relay wraps outgoing API calls with bearer-credential injection,
single-flight credential renewal, and classified retry with exponential
backoff. Credentials persist between invocations, so "relay login" in one
shell serves "relay send" in the next.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(probeCmd)
}
