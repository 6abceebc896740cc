package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "testpilot",
	Short: "TestPilot - workflow-aware test orchestration for 5G NF REST APIs",
	Long: `TestPilot drives multi-step HTTP test flows against network-function
hosts over SSH or direct HTTP, validating status codes, response
patterns, and payload equivalence in either lenient (OTP) or strict
(audit) mode.`,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
