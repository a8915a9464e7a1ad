package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is money received from a client against an invoice.
// Refunds are stored as their own rows (Status=Refunded, RefundOfPaymentID set).
type Payment struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	TenantID          string          `json:"tenant_id" gorm:"size:64;not null;uniqueIndex:idx_payments_tenant_number,priority:1;uniqueIndex:idx_payments_tenant_idempotency,priority:1;index:idx_payments_tenant_date,priority:1"`
	InvoiceID         uint            `json:"invoice_id" gorm:"not null;index"`
	ClientID          uint            `json:"client_id" gorm:"not null;index"`
	PaymentNumber     string          `json:"payment_number" gorm:"size:32;not null;uniqueIndex:idx_payments_tenant_number,priority:2"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	RefundedAmount    decimal.Decimal `json:"refunded_amount" gorm:"type:numeric(12,2);not null"`
	Currency          string          `json:"currency" gorm:"size:3;not null"`
	Method            PaymentMethod   `json:"method" gorm:"size:20;not null"`
	ReferenceNumber   *string         `json:"reference_number" gorm:"size:128"`
	PaymentDate       datatypes.Date  `json:"payment_date" gorm:"not null;index:idx_payments_tenant_date,priority:2"`
	GatewayProvider   *string         `json:"gateway_provider" gorm:"size:64"`
	CashierName       *string         `json:"cashier_name" gorm:"size:128"`
	Status            PaymentStatus   `json:"status" gorm:"size:20;not null;index"`
	StatusReason      *string         `json:"status_reason"`
	Notes             *string         `json:"notes"`
	RefundOfPaymentID *uint           `json:"refund_of_payment_id" gorm:"index"`
	CashReportID      *uint           `json:"cash_report_id" gorm:"index"`
	IdempotencyKey    *string         `json:"-" gorm:"size:128;uniqueIndex:idx_payments_tenant_idempotency,priority:2"`
	CreatedBy         string          `json:"created_by" gorm:"size:128"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Refundable is the part of a completed payment not yet refunded.
func (p *Payment) Refundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// DiscountProgram is a named, percentage-based, optionally capped discount rule.
type DiscountProgram struct {
	ID                 uint                `json:"id" gorm:"primaryKey"`
	TenantID           string              `json:"tenant_id" gorm:"size:64;not null;index"`
	Name               string              `json:"name" gorm:"size:128;not null"`
	NameAr             *string             `json:"name_ar" gorm:"size:128"`
	Type               DiscountProgramType `json:"type" gorm:"size:20;not null"`
	DiscountPercentage decimal.Decimal     `json:"discount_percentage" gorm:"type:numeric(5,2);not null"`
	MaxDiscountAmount  *decimal.Decimal    `json:"max_discount_amount" gorm:"type:numeric(12,2)"`
	Currency           *string             `json:"currency" gorm:"size:3"`
	IsActive           bool                `json:"is_active" gorm:"not null"`
	ValidFrom          *datatypes.Date     `json:"valid_from"`
	ValidTo            *datatypes.Date     `json:"valid_to"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	DeletedAt          gorm.DeletedAt      `json:"-" gorm:"index"`
}

// SupplierPayment is an outbound payment from the agency to a supplier.
type SupplierPayment struct {
	ID              uint                  `json:"id" gorm:"primaryKey"`
	TenantID        string                `json:"tenant_id" gorm:"size:64;not null;uniqueIndex:idx_supplier_payments_tenant_number,priority:1"`
	SupplierID      uint                  `json:"supplier_id" gorm:"not null;index"`
	WorkerID        *uint                 `json:"worker_id"`
	ContractID      *uint                 `json:"contract_id"`
	PaymentNumber   string                `json:"payment_number" gorm:"size:32;not null;uniqueIndex:idx_supplier_payments_tenant_number,priority:2"`
	Amount          decimal.Decimal       `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency        string                `json:"currency" gorm:"size:3;not null"`
	Method          PaymentMethod         `json:"method" gorm:"size:20;not null"`
	ReferenceNumber *string               `json:"reference_number" gorm:"size:128"`
	PaymentDate     datatypes.Date        `json:"payment_date" gorm:"not null"`
	Status          SupplierPaymentStatus `json:"status" gorm:"size:20;not null;index"`
	StatusReason    *string               `json:"status_reason"`
	Notes           *string               `json:"notes"`
	CreatedBy       string                `json:"created_by" gorm:"size:128"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// CashReconciliationReport (X-Report) summarizes a day's completed payments.
// One row per (tenant, report date); immutable once closed. GrandTotal is only
// meaningful when Breakdown holds a single currency.
type CashReconciliationReport struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	TenantID         string          `json:"tenant_id" gorm:"size:64;not null;uniqueIndex:idx_cash_reports_tenant_date,priority:1"`
	ReportNumber     string          `json:"report_number" gorm:"size:32;not null"`
	ReportDate       datatypes.Date  `json:"report_date" gorm:"not null;uniqueIndex:idx_cash_reports_tenant_date,priority:2"`
	CashierName      *string         `json:"cashier_name" gorm:"size:128"`
	TransactionCount int             `json:"transaction_count" gorm:"not null"`
	GrandTotal       decimal.Decimal `json:"grand_total" gorm:"type:numeric(14,2);not null"`
	Breakdown        datatypes.JSON  `json:"breakdown"`
	IsClosed         bool            `json:"is_closed" gorm:"not null"`
	ClosedAt         *time.Time      `json:"closed_at"`
	ClosedBy         *string         `json:"closed_by" gorm:"size:128"`
	CreatedBy        string          `json:"created_by" gorm:"size:128"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TableName keeps the table name short.
func (CashReconciliationReport) TableName() string {
	return "cash_reports"
}

// Sequence is a tenant-scoped monotonic counter (invoice, payment, report numbers).
type Sequence struct {
	TenantID  string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"primaryKey;size:32"`
	LastValue int64     `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName prefixes the counters table.
func (Sequence) TableName() string {
	return "ledger_sequences"
}
