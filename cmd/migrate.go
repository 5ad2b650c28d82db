package cmd

import (
	"invoicepay-backend/database"
	"invoicepay-backend/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and seed the admin account",
	Long: `Apply the database schema. When ADMIN_EMAIL and ADMIN_PASSWORD are set
and no admin with that email exists, one is created.`,
	Example: `  # Migrate the configured database
  invoicer migrate

  # Migrate without seeding
  invoicer migrate --skip-seed`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("skip-seed", false, "Do not create the admin account")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("migrate")
	skipSeed, _ := cmd.Flags().GetBool("skip-seed")

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("Schema up to date")

	if skipSeed || cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	created, err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	log.Info().
		Str("email", cfg.AdminEmail).
		Bool("created", created).
		Msg("Admin account checked")
	return nil
}
