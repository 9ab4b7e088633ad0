package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castv/castv/headend"
	"github.com/castv/castv/internal/ledger"
)

var (
	encodeSubDeviceID uint32
	encodeSubChannel  uint32
	encodeSubStart    uint64
	encodeSubEnd      uint64
	encodeSubOut      string
	encodeSubLedger   string
)

var encodeSubscriptionCmd = &cobra.Command{
	Use:   "encode-subscription",
	Short: "Issue a subscription for a device over a channel and time range",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("secrets")
		if path == "" {
			return fmt.Errorf("headend: --secrets is required")
		}
		if encodeSubChannel == 0 {
			return fmt.Errorf("headend: channel 0 is implicit and cannot be subscribed to")
		}
		blob, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m, err := headend.LoadMaterial(blob)
		if err != nil {
			return err
		}

		sub := m.GenerateSubscription(encodeSubDeviceID, encodeSubStart, encodeSubEnd, encodeSubChannel)

		if encodeSubLedger != "" {
			l, err := ledger.Open(encodeSubLedger)
			if err != nil {
				return err
			}
			defer l.Close()
			if err := l.RecordSubscription(encodeSubDeviceID, encodeSubChannel, encodeSubStart, encodeSubEnd, time.Now()); err != nil {
				return err
			}
		}

		return os.WriteFile(encodeSubOut, sub.Marshal(), 0o644)
	},
}

func init() {
	rootCmd.AddCommand(encodeSubscriptionCmd)
	encodeSubscriptionCmd.Flags().Uint32Var(&encodeSubDeviceID, "device-id", 0, "Target decoder's device ID")
	encodeSubscriptionCmd.Flags().Uint32Var(&encodeSubChannel, "channel", 0, "Channel number")
	encodeSubscriptionCmd.Flags().Uint64Var(&encodeSubStart, "start", 0, "Subscription start timestamp")
	encodeSubscriptionCmd.Flags().Uint64Var(&encodeSubEnd, "end", 0, "Subscription end timestamp")
	encodeSubscriptionCmd.Flags().StringVar(&encodeSubOut, "out", "subscription.bin", "Output path for the subscription packet")
	encodeSubscriptionCmd.Flags().StringVar(&encodeSubLedger, "ledger", "", "Optional path to an issuance ledger database")
}
