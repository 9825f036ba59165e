package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aiformreply",
	Short: "AI Form Reply backend",
	Long: `Backend for the AI Form Reply dashboard: accounts, the knowledge base
editor with AI suggestions, the trial countdown and problem reports.

Commands:
  serve  - Run the HTTP API
  procs  - Manage the process manager config for the Python services`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, procsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
