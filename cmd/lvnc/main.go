// Command lvnc is a debug client for LiveView Native servers: it fetches
// dead renders, connects live sessions, and streams rendered documents to
// stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lvnc",
		Short: "Debug client for LiveView Native servers",
		Long: `lvnc speaks the LiveView client protocol from the command line.

It can fetch and inspect a dead render, or connect a live session and
stream the rendered document as the server pushes diffs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		getCmd(),
		connectCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lvnc %s (%s)\n", version, commit)
		},
	}
}
