package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const serviceName = "payment-confirmations"

var (
	Version = "dev"
	Commit  = "unknown"
)

type buildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), buildInfo{Service: serviceName, Version: Version, Commit: Commit})
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit: %s)\n", serviceName, Version, Commit)
		return err
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "print build information as JSON")
	rootCmd.AddCommand(versionCmd)
}
