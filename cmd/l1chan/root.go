package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/l1chan/channel"
)

var (
	cpuNo        int
	dataSet      int
	syncSet      int
	timeout      time.Duration
	pollInterval time.Duration
	repetition   int
	tracePath    string
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "l1chan",
	Short: "Prime+Probe covert channel over the L1 data cache",
	Long: `l1chan characterizes the L1 data cache of one core and runs a ` +
		`Prime+Probe covert channel over it. Run "l1chan receive" in one ` +
		`process, then "l1chan transmit" in another pinned to the same ` +
		`core. Both sides must agree on --set and --sync-set.`,
	SilenceUsage: true,
}

// Execute runs the root command and terminates through atexit, so the
// trace recorder's exit-time flush runs. It exits non-zero on any
// error, including an unrecognized role.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&cpuNo, "cpu", 0,
		"logical CPU both parties pin to")
	pf.IntVar(&dataSet, "set", 0,
		"cache set index carrying data bits")
	pf.IntVar(&syncSet, "sync-set", 1,
		"cache set index framing symbol periods")
	pf.DurationVar(&timeout, "timeout", channel.DefaultTimeout,
		"limit on every synchronization wait")
	pf.DurationVar(&pollInterval, "poll-interval", 0,
		"pause between synchronization probes (0 = tight loop)")
	pf.IntVar(&repetition, "repeat", 1,
		"odd per-bit repetition count for majority voting")
	pf.StringVar(&tracePath, "trace", os.Getenv("L1CHAN_TRACE"),
		"record the session to this SQLite database")
}
