package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version <stream> <version>",
	Short: "Switch a running stream's video-ladder version",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runVersionCommand(args[0], args[1])
	},
}

func runVersionCommand(stream, slotArg string) {
	slot, err := parseUintArg(slotArg)
	if err != nil {
		exitWithError("invalid version value", err)
	}

	err = sendCommand(controlAddr, map[string]interface{}{
		"Version": map[string]uint32{stream: uint32(slot)},
	})
	if err != nil {
		exitWithError("failed to send version command", err)
	}
	fmt.Printf("sent version=%d to stream %q\n", slot, stream)
}
