package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForTenant restricts a query to one tenant. Every ledger read and write goes through it.
func ForTenant(tenantID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// Paginate applies limit/offset.
func Paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit).Offset(offset)
	}
}

// ForUpdate takes a row lock for the rest of the transaction (no-op on SQLite,
// where the single writer connection already serializes transactions).
func ForUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
