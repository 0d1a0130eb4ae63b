// Package main provides the l1chan command, a Prime+Probe covert channel
// over the L1 data cache. One invocation transmits, another — typically
// an unrelated, unprivileged process pinned to the same physical core —
// receives, with no shared memory or IPC between them.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	// Optional .env overrides (L1CHAN_TRACE).
	_ = godotenv.Load()

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: "15:04:05",
		}),
	))

	Execute()
}
