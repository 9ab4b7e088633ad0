// Command headend is the trusted-side CLI for a satellite conditional-access
// deployment: it generates deployment secrets and issues subscriptions and
// encoded frames against them.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castv/castv/internal/logging"
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "headend",
	Short: "Headend tooling for a satellite conditional-access deployment",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("headend: command failed", "err", err)
		os.Exit(1)
	}
}

func init() {
	logging.Init("info")
	rootCmd.PersistentFlags().String("secrets", "", "Path to the deployment secrets blob")
	viper.BindPFlag("secrets", rootCmd.PersistentFlags().Lookup("secrets"))
}

func main() {
	Execute()
}
