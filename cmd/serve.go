package cmd

import (
	"invoicepay-backend/app"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. The schema is migrated on startup.

Stripe and PayPal are enabled only when their credentials are set:
  STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET
  PAYPAL_CLIENT_ID, PAYPAL_CLIENT_SECRET, PAYPAL_MODE`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	fxApp := fx.New(
		fx.Supply(cfg),
		fx.NopLogger,
		app.Module,
	)
	if err := fxApp.Err(); err != nil {
		return err
	}
	fxApp.Run()
	return nil
}
