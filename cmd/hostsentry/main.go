// hostsentry — cross-platform host observability daemon.
//
// Samples processes, services, network traffic and hardware load into a
// unified event store, risk-scores the findings, and exposes them to AI
// agents over the Model Context Protocol.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hostsentry",
		Short: "Host observability daemon with an MCP interface",
		Long: `hostsentry — single binary host monitor.

Collects process, service, network and hardware events on Linux,
macOS and Windows, persists them to SQLite and a local vector index,
and serves risk analysis, semantic search and threat-intel lookups
to AI agents over the Model Context Protocol.`,
		Version: version,
	}

	rootCmd.AddCommand(newServeCmd(), newSnapshotCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
