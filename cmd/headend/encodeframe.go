package main

import (
	"fmt"
	"os"

	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castv/castv/headend"
	"github.com/castv/castv/internal/ledger"
	"github.com/castv/castv/wire"
)

var (
	encodeFrameChannel   uint32
	encodeFrameTimestamp uint64
	encodeFrameOut       string
	encodeFramePlaintext string
	encodeFrameLedger    string
)

var encodeFrameCmd = &cobra.Command{
	Use:   "encode-frame",
	Short: "Encode and sign one frame for a channel at a timestamp",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("secrets")
		if path == "" {
			return fmt.Errorf("headend: --secrets is required")
		}
		blob, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m, err := headend.LoadMaterial(blob)
		if err != nil {
			return err
		}

		var frame wire.Frame
		copy(frame[:], encodeFramePlaintext)

		pkt, err := m.EncodeFrame(frame, encodeFrameTimestamp, encodeFrameChannel)
		if err != nil {
			return err
		}

		if encodeFrameLedger != "" {
			l, err := ledger.Open(encodeFrameLedger)
			if err != nil {
				return err
			}
			defer l.Close()
			if err := l.RecordFrame(encodeFrameChannel, encodeFrameTimestamp, time.Now()); err != nil {
				return err
			}
		}

		return os.WriteFile(encodeFrameOut, pkt.Marshal(), 0o644)
	},
}

func init() {
	rootCmd.AddCommand(encodeFrameCmd)
	encodeFrameCmd.Flags().Uint32Var(&encodeFrameChannel, "channel", 0, "Channel number")
	encodeFrameCmd.Flags().Uint64Var(&encodeFrameTimestamp, "timestamp", 0, "Frame timestamp")
	encodeFrameCmd.Flags().StringVar(&encodeFramePlaintext, "frame", "", "Plaintext frame contents (up to 64 bytes, zero-padded)")
	encodeFrameCmd.Flags().StringVar(&encodeFrameOut, "out", "frame.bin", "Output path for the encoded frame packet")
	encodeFrameCmd.Flags().StringVar(&encodeFrameLedger, "ledger", "", "Optional path to an issuance ledger database")
}
