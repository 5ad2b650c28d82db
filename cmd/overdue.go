package cmd

import (
	"fmt"
	"time"

	"invoicepay-backend/access"
	"invoicepay-backend/database"
	"invoicepay-backend/logger"
	"invoicepay-backend/repositories"
	"invoicepay-backend/services"

	"github.com/spf13/cobra"
)

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Mark open invoices past their due date as overdue",
	Example: `  # Use the current time
  invoicer overdue

  # Evaluate as of a given day
  invoicer overdue --as-of 2025-06-30`,
	RunE: runOverdue,
}

func init() {
	rootCmd.AddCommand(overdueCmd)

	overdueCmd.Flags().String("as-of", "", "Reference date (format: YYYY-MM-DD, default: now)")
}

func runOverdue(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("overdue")

	asOf := time.Now().UTC()
	if s, _ := cmd.Flags().GetString("as-of"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("invalid --as-of date. Use YYYY-MM-DD: %w", err)
		}
		asOf = parsed
	}

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	invoiceRepo := repositories.NewInvoiceRepository(db)
	svc := services.NewInvoiceService(db, invoiceRepo, repositories.NewPaymentRepository(db), nil, access.NewChecker(invoiceRepo))

	n, err := svc.MarkOverdue(cmd.Context(), asOf)
	if err != nil {
		return err
	}
	log.Info().
		Str("as_of", asOf.Format(time.RFC3339)).
		Int64("updated", n).
		Msg("Overdue invoices marked")
	return nil
}
