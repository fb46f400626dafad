package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "syncroomd",
		Short: "Real-time collaborative document coordinator",
		Long: `syncroomd relays CRDT document updates and presence between the
clients of a room, keeps the merged state in memory, and persists it
with debounced writes.

Clients connect over WebSocket, speaking either the binary
sync/awareness protocol or the simplified JSON protocol. A small REST
surface exposes health, per-room state, and room reset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
