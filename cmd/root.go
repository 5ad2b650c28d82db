package cmd

import (
	"fmt"
	"os"

	"invoicepay-backend/config"
	"invoicepay-backend/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// cfg is set by Execute before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Invoicing and payment collection backend",
	Long: `invoicer serves the invoice REST API, collects payments through
Stripe and PayPal, and reconciles provider confirmations against invoices.

Configuration is read from the environment (and .env when present).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare `invoicer` starts the server, matching the container entrypoint.
		return runServe(cmd, args)
	},
}

func Execute(c *config.Config) {
	cfg = c
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
