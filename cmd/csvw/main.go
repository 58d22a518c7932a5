// Package main provides the csvw binary: CSV on the Web conversions between
// CSV files and RDF from the command line.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is set with -ldflags when building releases.
var Version string

const appName = "csvw"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Convert between CSV on the Web tables and RDF",
		Long: `csvw converts CSV files described by CSVW metadata into RDF, converts
RDF back into CSV files, validates tables against their metadata and infers
table layouts from RDF.

Resources are addressed by file path or by file:, http(s): or s3:// URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(cmd)

	cmd.AddCommand(
		csv2rdfCmd(flags),
		rdf2csvCmd(flags),
		validateCmd(flags),
		inferCmd(flags),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version())
		},
	}
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(unknown version)"
}
