package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Query the running transmitter's statistics",
	Long: `Send a Statistics command to the control daemon and print the
per-stream flow statistics and MAC device snapshot it returns.`,
	Run: func(cmd *cobra.Command, args []string) {
		runStatsCommand()
	},
}

func runStatsCommand() {
	stat, err := fetchStatistics(controlAddr)
	if err != nil {
		exitWithError("failed to query statistics", err)
	}

	data, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(data))
}
