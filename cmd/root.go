package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payment-confirmations",
	Short: "Checkout payment confirmation service",
	Long: "Confirms hosted checkout payments by polling the checkout status after the " +
		"browser returns, and fronts the subscription billing endpoints.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
