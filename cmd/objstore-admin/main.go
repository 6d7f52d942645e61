// Command objstore-admin is an operational CLI for an objstore container:
// schema/version introspection, index rollout and rebuild, uniqueness
// violation scans, a Prometheus scrape endpoint, and vector index stats.
//
// The schema it opens against (see schema.go) is a small worked example —
// a "document" type with two indexes and a polymorphic protocol — standing
// in for whatever schema an embedding application actually declares. A real
// deployment links objstore as a library and ships its own admin binary
// built the same way against its own schema.TypeDescriptor values.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/objstore/pkg/obs/log"
)

var (
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "objstore-admin",
	Short:   "Administrative CLI for an embedded objstore container",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "./objstore-data", "Directory holding the embedded store file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(vectorCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}
