// Command geopulse runs the geo intelligence engine: an HTTP API over the
// demand, supply, hotspot and opportunity engines, plus one-shot query and
// migration commands.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}
