// Command decodersim runs the decoder's command loop against a simulated
// or real serial link, for exercising the protocol without flashing real
// hardware.
package main

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castv/castv/decoder"
	"github.com/castv/castv/headend"
	"github.com/castv/castv/internal/config"
	"github.com/castv/castv/internal/logging"
	"github.com/castv/castv/store"
	"github.com/castv/castv/transport"
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "decodersim",
	Short: "Run the decoder command loop against a serial link",
	RunE:  run,
}

func init() {
	rootCmd.Flags().String("secrets", "", "Path to the deployment secrets blob")
	rootCmd.Flags().Uint32("device-id", 0, "This decoder's device ID")
	rootCmd.Flags().String("store-path", "decoder.store", "Path to the subscription store file")
	rootCmd.Flags().String("device", "", "Path to a serial device; stdio is used when empty")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	viper.BindPFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stdio adapts os.Stdin/os.Stdout into a single io.ReadWriter for
// transport.OpenLink when no serial device path is given.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logging.Init(cfg.LogLevel)

	blob, err := os.ReadFile(cfg.SecretsPath)
	if err != nil {
		return fmt.Errorf("decodersim: read secrets: %w", err)
	}
	material, err := headend.LoadMaterial(blob)
	if err != nil {
		return fmt.Errorf("decodersim: load secrets: %w", err)
	}

	der, err := material.VerifyingKeyDER()
	if err != nil {
		return err
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("decodersim: verifying key is not RSA")
	}

	arena, err := store.OpenFileArena(cfg.StorePath, 1<<20)
	if err != nil {
		return fmt.Errorf("decodersim: open store: %w", err)
	}
	st, err := store.Open(arena, material.Secret)
	if err != nil {
		return fmt.Errorf("decodersim: init store: %w", err)
	}

	channel0 := material.Channel0Subscription(cfg.DeviceID)

	d, err := decoder.New(cfg.DeviceID, material.Secret.DeviceKey(cfg.DeviceID), rsaPub, st, channel0)
	if err != nil {
		return fmt.Errorf("decodersim: init decoder: %w", err)
	}

	devicePath := viper.GetString("device")
	var link transport.Link
	if devicePath == "" {
		link = transport.OpenLink(stdio{})
	} else {
		f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("decodersim: open serial device: %w", err)
		}
		defer f.Close()
		link = transport.OpenLink(f)
	}

	conn := transport.NewConn(link)
	slog.Info("decodersim: serving", "device_id", cfg.DeviceID, "store", cfg.StorePath)
	return d.Serve(conn)
}
