package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QianrenLi/stream-replay/internal/config"
)

var (
	policyTheta1 float64
	policyTheta2 float64
	policyTheta3 float64
	policyTheta4 float64
)

var policyCmd = &cobra.Command{
	Use:   "policy <stream>",
	Short: "Set a running stream's policy parameters",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runPolicyCommand(args[0])
	},
}

func init() {
	policyCmd.Flags().Float64Var(&policyTheta1, "theta1", 0, "policy parameter theta1")
	policyCmd.Flags().Float64Var(&policyTheta2, "theta2", 0, "policy parameter theta2")
	policyCmd.Flags().Float64Var(&policyTheta3, "theta3", 0, "policy parameter theta3")
	policyCmd.Flags().Float64Var(&policyTheta4, "theta4", 0, "policy parameter theta4")
}

func runPolicyCommand(stream string) {
	params := config.PolicyParameter{
		Theta1: policyTheta1,
		Theta2: policyTheta2,
		Theta3: policyTheta3,
		Theta4: policyTheta4,
	}

	err := sendCommand(controlAddr, map[string]interface{}{
		"PolicyParameters": map[string]config.PolicyParameter{stream: params},
	})
	if err != nil {
		exitWithError("failed to send policy command", err)
	}
	fmt.Printf("sent policy parameters %+v to stream %q\n", params, stream)
}
