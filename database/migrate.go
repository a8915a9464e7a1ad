package database

import (
	"fmt"

	"ledger-backend/models"

	"gorm.io/gorm"
)

// ledgerTables lists every table owned by the ledger.
func ledgerTables() []any {
	return []any{
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.InvoiceVersion{},
		&models.Payment{},
		&models.DiscountProgram{},
		&models.SupplierPayment{},
		&models.CashReconciliationReport{},
		&models.Sequence{},
		&models.IdempotencyKey{},
	}
}

// Migrate applies idempotent schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - CHECK constraints backing the money invariants (Postgres only)
//
// On SQLite the contracts table is created as well so the service runs stand-alone;
// on Postgres it belongs to the platform and is only read.
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		tables := ledgerTables()
		if IsSQLite(tx) {
			tables = append(tables, &models.ContractRef{})
		}
		if err := tx.AutoMigrate(tables...); err != nil {
			return fmt.Errorf("ledger automigrate failed: %w", err)
		}
		if IsSQLite(tx) {
			return nil
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_payments_unreported ON payments (tenant_id, payment_date) WHERE cash_report_id IS NULL AND status = 'Completed'`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_tenant_due ON invoices (tenant_id, due_date) WHERE status IN ('Issued', 'PartiallyPaid')`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		for _, c := range checkConstraints {
			if err := tx.Exec(c.statement()).Error; err != nil {
				return fmt.Errorf("check constraint %s failed: %w", c.name, err)
			}
		}
		return nil
	})
}

type checkConstraint struct {
	table string
	name  string
	expr  string
}

var checkConstraints = []checkConstraint{
	{"invoices", "chk_invoices_amounts_nonneg", "subtotal >= 0 AND discount_amount >= 0 AND vat_amount >= 0 AND total_amount >= 0 AND paid_amount >= 0"},
	{"invoices", "chk_invoices_taxable", "taxable_amount = subtotal - discount_amount"},
	{"invoices", "chk_invoices_total", "total_amount = taxable_amount + vat_amount"},
	{"invoices", "chk_invoices_paid_le_total", "paid_amount <= total_amount"},
	{"invoice_line_items", "chk_invoice_line_items_quantity_pos", "quantity > 0"},
	{"invoice_line_items", "chk_invoice_line_items_price_nonneg", "unit_price >= 0 AND discount_amount >= 0"},
	{"payments", "chk_payments_amount_pos", "amount > 0"},
	{"payments", "chk_payments_refunded_range", "refunded_amount >= 0 AND refunded_amount <= amount"},
	{"supplier_payments", "chk_supplier_payments_amount_pos", "amount > 0"},
	{"discount_programs", "chk_discount_programs_percentage", "discount_percentage >= 0 AND discount_percentage <= 100"},
	{"cash_reports", "chk_cash_reports_count_nonneg", "transaction_count >= 0"},
}

func (c checkConstraint) statement() string {
	return fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%[1]s'::regclass
		  AND conname  = '%[2]s'
	) THEN
		ALTER TABLE %[1]s
		ADD CONSTRAINT %[2]s
		CHECK (%[3]s);
	END IF;
END $$;`, c.table, c.name, c.expr)
}
