// Package main provides the entry point for l1chan.
// l1chan is a Prime+Probe covert channel over the L1 data cache.
//
// For the full CLI, use: go run ./cmd/l1chan
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Stdout, os.Args[1:]))
}

// run prints the usage summary. Supplied arguments are an error; the
// real CLI lives in cmd/l1chan.
func run(w io.Writer, args []string) int {
	fmt.Fprintln(w, "l1chan - L1 data-cache Prime+Probe covert channel")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: l1chan <transmit|receive> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --cpu        logical CPU both parties pin to")
	fmt.Fprintln(w, "  --set        cache set index carrying data bits")
	fmt.Fprintln(w, "  --sync-set   cache set index framing symbol periods")
	fmt.Fprintln(w, "  --timeout    limit on every synchronization wait")
	fmt.Fprintln(w, "  --repeat     odd per-bit repetition count")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'go run ./cmd/l1chan' for the full CLI.")

	if len(args) > 0 {
		fmt.Fprintln(w, "\nNote: You provided arguments. Use 'go run ./cmd/l1chan' instead.")
		return 1
	}
	return 0
}
