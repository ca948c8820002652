// Command latticegraphd runs the causal-hypothesis lattice graph
// daemon: a Service Façade speaking the protocol of internal/rpc over
// a Store Adapter backed by internal/store/dolt (SPEC_FULL §11).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "latticegraphd",
	Short: "Causal-hypothesis lattice graph daemon",
	Long: `latticegraphd mediates monotone mutations to a causal-hypothesis
graph: nodes and edges merge under join-semilattice laws, and per-incident
tombstone sets derive a live view without ever deleting from the main graph.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (default: built-in defaults + environment)")
	rootCmd.AddCommand(serveCmd, initCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
