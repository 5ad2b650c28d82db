package database

import (
	"errors"
	"fmt"

	"invoicepay-backend/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - Postgres only: CHECK constraints on amounts and status columns
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.Invoice{},
			&models.Payment{},
			&models.Admin{},
			&models.IdempotencyKey{},
			&models.RateLimitEntry{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		checks := []struct{ table, name, expr string }{
			{"invoices", "chk_invoices_total_nonneg", "total >= 0 AND subtotal >= 0 AND tax >= 0"},
			{"invoices", "chk_invoices_status", "status IN ('pending','unpaid','paid','overdue','failed')"},
			{"payments", "chk_payments_amount_nonneg", "amount >= 0"},
			{"payments", "chk_payments_status", "payment_status IN ('pending','completed','failed')"},
		}
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = '%s'::regclass
					  AND conname  = '%s'
				) THEN
					ALTER TABLE %s
					ADD CONSTRAINT %s
					CHECK (%s);
				END IF;
			END $$;`, c.table, c.name, c.table, c.name, c.expr)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", c.name, err)
			}
		}
		return nil
	})
}

// SeedAdmin creates the local admin account once. Existing accounts are left untouched.
func SeedAdmin(db *gorm.DB, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	var existing models.Admin
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	admin := models.Admin{Email: email, Name: "Administrator", Role: "admin"}
	if err := admin.SetPassword(password); err != nil {
		return false, err
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
