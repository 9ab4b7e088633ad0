package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castv/castv/headend"
)

var genSecretsCmd = &cobra.Command{
	Use:   "gen-secrets",
	Short: "Generate a fresh deployment secrets blob",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("secrets")
		if path == "" {
			return fmt.Errorf("headend: --secrets is required")
		}

		m, err := headend.GenerateMaterial(nil, nil)
		if err != nil {
			return err
		}

		return os.WriteFile(path, m.Marshal(), 0o600)
	},
}

func init() {
	rootCmd.AddCommand(genSecretsCmd)
}
