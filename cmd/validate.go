package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/QianrenLi/stream-replay/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a run manifest without starting any streams",
	Long: `Validate a run manifest (JSON) without starting any streams.

Checks the window size, every stream's links/source/policy/duration, and
reports the first error found.

Examples:
  stream-replay validate -f manifest.json`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

var validateManifestFile string

func init() {
	validateCmd.Flags().StringVarP(&validateManifestFile, "file", "f", "",
		"run manifest file to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidateCommand() {
	data, err := os.ReadFile(validateManifestFile)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to read file %s", validateManifestFile), err)
	}

	manifest, err := config.ParseManifest(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: %d stream(s), window_size=%d\n", len(manifest.Streams), manifest.WindowSize)
	for _, s := range manifest.Streams {
		fmt.Printf("  - %-16s policy=%-18s links=%d duration=[%.2f,%.2f] source=%s\n",
			s.Name, orDefault(s.Policy, "hard_threshold"), len(s.Links), s.Duration[0], s.Duration[1], s.Source)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
