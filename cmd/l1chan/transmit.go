package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1chan/channel"
)

const defaultMessage = "hello world!"

var transmitCmd = &cobra.Command{
	Use:   "transmit [message]",
	Short: "Transmit a message over the covert channel",
	Long: `Transmit encodes the message bit by bit on the agreed data set ` +
		`and hand-shakes every symbol over the sync set. Start the ` +
		`receiver first; the opening symbols are lost otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := defaultMessage
		if len(args) == 1 {
			message = args[0]
		}

		s, err := openSession("transmit")
		if err != nil {
			return err
		}
		defer s.close()

		sender, err := channel.NewSender(s.ctx, s.cal, s.params, s.options()...)
		if err != nil {
			return err
		}

		slog.Info("transmitting",
			"bytes", len(message),
			"data_set", s.params.DataSet,
			"sync_set", s.params.SyncSet,
			"repeat", s.params.Repetition)

		if err := sender.Send([]byte(message)); err != nil {
			return err
		}

		slog.Info("message sent", "state", sender.State().String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transmitCmd)
}
