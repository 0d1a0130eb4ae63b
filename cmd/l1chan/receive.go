package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1chan/channel"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive one message from the covert channel",
	Long: `Receive primes the agreed sets, waits for a transmitter, and ` +
		`recovers one length-prefixed message. It fails with a peer- ` +
		`unresponsive error if no symbol arrives within the timeout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession("receive")
		if err != nil {
			return err
		}
		defer s.close()

		receiver, err := channel.NewReceiver(s.ctx, s.cal, s.params, s.options()...)
		if err != nil {
			return err
		}

		slog.Info("listening",
			"data_set", s.params.DataSet,
			"sync_set", s.params.SyncSet,
			"timeout", s.params.Timeout)

		result, err := receiver.Receive()
		if err != nil {
			return err
		}

		slog.Info("message received",
			"bytes", len(result.Payload),
			"preamble_bit_errors", result.PreambleBitErrors,
			"state", receiver.State().String())
		fmt.Println(string(result.Payload))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd)
}
