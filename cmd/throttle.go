package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var throttleCmd = &cobra.Command{
	Use:   "throttle <stream> <mbps>",
	Short: "Set a running stream's throttle threshold",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runThrottleCommand(args[0], args[1])
	},
}

func runThrottleCommand(stream, mbpsArg string) {
	mbps, err := parseFloatArg(mbpsArg)
	if err != nil {
		exitWithError("invalid mbps value", err)
	}

	err = sendCommand(controlAddr, map[string]interface{}{
		"Throttle": map[string]float64{stream: mbps},
	})
	if err != nil {
		exitWithError("failed to send throttle command", err)
	}
	fmt.Printf("sent throttle=%.2fMbps to stream %q\n", mbps, stream)
}
