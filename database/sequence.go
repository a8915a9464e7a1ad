package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Sequence names and the prefixes their numbers are rendered with.
const (
	SeqInvoice         = "INV"
	SeqProforma        = "PRO"
	SeqCreditNote      = "CN"
	SeqPayment         = "PAY"
	SeqRefund          = "RF"
	SeqSupplierPayment = "SP"
	SeqCashReport      = "XR"
)

// NextNumber allocates the next value of a tenant-scoped counter inside tx.
// The upsert holds the counter row lock until tx ends, so concurrent allocations
// never return the same value and a rolled-back tx does not consume one.
func NextNumber(tx *gorm.DB, tenantID, name string) (int64, error) {
	var next int64
	err := tx.Raw(`
		INSERT INTO ledger_sequences (tenant_id, name, last_value, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (tenant_id, name)
		DO UPDATE SET last_value = ledger_sequences.last_value + 1, updated_at = excluded.updated_at
		RETURNING last_value`,
		tenantID, name, time.Now().UTC(),
	).Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s number: %w", name, err)
	}
	return next, nil
}

// FormatNumber renders a sequence value, e.g. INV-000042.
func FormatNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

// NextFormatted allocates and formats in one step.
func NextFormatted(tx *gorm.DB, tenantID, name string) (string, error) {
	n, err := NextNumber(tx, tenantID, name)
	if err != nil {
		return "", err
	}
	return FormatNumber(name, n), nil
}
