package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rounds",
	Short: "Multi-specialist health data analysis",
	Long: `Rounds answers health-data questions by coordinating a team of
domain specialists.

A lead agent sizes up each question, hands out bounded research tasks to
specialists (cardiology, sleep medicine, nutrition, ...), runs them
concurrently in priority order, and synthesizes their findings into one
answer. Every run can record a trace for offline replay and scoring.

Core capabilities:
- Classifies question complexity and picks the specialist roster
- Fans specialists out concurrently with per-task retry
- Streams the synthesized answer as it is written
- Records replayable execution traces
- Scores runs against expected-outcome test cases`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(tracesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
