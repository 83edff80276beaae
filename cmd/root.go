// Package cmd implements the stream-replay CLI using the cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags.
	configFile  string
	controlAddr string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stream-replay",
	Short: "Multi-link policy-driven UDP stream transmitter",
	Long: `stream-replay replays recorded or live video streams over one or two
managed wireless links, fragmenting and scheduling fragments across links
under a pluggable routing policy, and exposing a UDP control protocol to
adjust throttle/policy/version at runtime and read back statistics.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/stream-replay/config.yml",
		"global configuration file path")
	rootCmd.PersistentFlags().StringVar(&controlAddr, "control", "127.0.0.1:5566",
		"control daemon address (host:port) for client commands")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(throttleCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
