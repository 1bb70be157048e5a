package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Tiered escalation executor",
	Long: `Cascade runs escalating execution strategies over the same input:
deterministic code first, then a generative model call, then an agent
loop, then human review. Cheaper tiers run first; failures escalate.

This CLI manages the surrounding state of durable cascades:
  - pending human reviews (list, approve, reject)
  - persisted step checkpoints (list, purge)
  - effective configuration`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(reviewsCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
