package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Invoice is the current/live state of a billable document.
// Money columns are NUMERIC(12,2); BalanceDue is derived on load.
type Invoice struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	TenantID      string        `json:"tenant_id" gorm:"size:64;not null;index:idx_invoices_tenant_status,priority:1;uniqueIndex:idx_invoices_tenant_number,priority:1"`
	InvoiceNumber *string       `json:"invoice_number" gorm:"size:32;uniqueIndex:idx_invoices_tenant_number,priority:2"`
	ContractID    uint          `json:"contract_id" gorm:"not null;index"`
	ClientID      uint          `json:"client_id" gorm:"not null;index"`
	WorkerID      *uint         `json:"worker_id"`
	Type          InvoiceType   `json:"type" gorm:"size:20;not null"`
	Status        InvoiceStatus `json:"status" gorm:"size:20;not null;index:idx_invoices_tenant_status,priority:2"`
	StatusReason  *string       `json:"status_reason"`
	MilestoneType *string       `json:"milestone_type" gorm:"size:50"`

	IssueDate datatypes.Date `json:"issue_date" gorm:"not null"`
	DueDate   datatypes.Date `json:"due_date" gorm:"not null;index"`
	Currency  string         `json:"currency" gorm:"size:3;not null"`

	// Live items (editable only while Draft)
	Items []InvoiceLineItem `json:"line_items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	Subtotal           decimal.Decimal  `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount" gorm:"type:numeric(12,2);not null"`
	DiscountProgramID  *uint            `json:"discount_program_id" gorm:"index"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage" gorm:"type:numeric(5,2)"`
	DiscountCap        *decimal.Decimal `json:"discount_cap" gorm:"type:numeric(12,2)"`
	DiscountCardNumber *string          `json:"discount_card_number" gorm:"size:64"`
	TaxableAmount      decimal.Decimal  `json:"taxable_amount" gorm:"type:numeric(12,2);not null"`
	VATRate            decimal.Decimal  `json:"vat_rate" gorm:"column:vat_rate;type:numeric(5,4);not null"`
	VATAmount          decimal.Decimal  `json:"vat_amount" gorm:"column:vat_amount;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal  `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	PaidAmount         decimal.Decimal  `json:"paid_amount" gorm:"type:numeric(12,2);not null"`
	BalanceDue         decimal.Decimal  `json:"balance_due" gorm:"-"`

	TenantTRN         *string `json:"tenant_trn" gorm:"column:tenant_trn;size:32"`
	ClientTRN         *string `json:"client_trn" gorm:"column:client_trn;size:32"`
	Notes             *string `json:"notes"`
	OriginalInvoiceID *uint   `json:"original_invoice_id" gorm:"index"`
	CreditReason      *string `json:"credit_reason"`

	IssuedAt    *time.Time `json:"issued_at"`
	LockVersion int        `json:"-" gorm:"not null;default:0"`
	CreatedBy   string     `json:"created_by" gorm:"size:128"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AfterFind derives BalanceDue from the stored totals.
func (inv *Invoice) AfterFind(tx *gorm.DB) error {
	inv.RefreshBalance()
	return nil
}

// RefreshBalance recomputes BalanceDue = TotalAmount - PaidAmount.
func (inv *Invoice) RefreshBalance() {
	inv.BalanceDue = inv.TotalAmount.Sub(inv.PaidAmount)
}

// SignedTotal is the amount the document contributes to receivables:
// credit notes are stored as positive magnitudes and count negative.
func (inv *Invoice) SignedTotal() decimal.Decimal {
	if inv.Type == InvoiceTypeCreditNote {
		return inv.TotalAmount.Neg()
	}
	return inv.TotalAmount
}

// Label is the invoice number, or "#<id>" while the invoice is an unnumbered draft.
func (inv *Invoice) Label() string {
	if inv.InvoiceNumber != nil {
		return *inv.InvoiceNumber
	}
	return "#" + strconv.FormatUint(uint64(inv.ID), 10)
}

// InvoiceLineItem is owned by its invoice.
type InvoiceLineItem struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	InvoiceID      uint            `json:"-" gorm:"not null;uniqueIndex:idx_invoice_line_items_invoice_line,priority:1"`
	LineNumber     int             `json:"line_number" gorm:"not null;uniqueIndex:idx_invoice_line_items_invoice_line,priority:2"`
	Description    string          `json:"description" gorm:"not null"`
	DescriptionAr  *string         `json:"description_ar"`
	ItemCode       *string         `json:"item_code" gorm:"size:64"`
	Quantity       decimal.Decimal `json:"quantity" gorm:"type:numeric(12,3);not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:numeric(12,2);not null"`
	LineTotal      decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2);not null"`
}

// InvoiceVersion is an immutable audit snapshot of an invoice after a state change.
type InvoiceVersion struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TenantID  string         `json:"-" gorm:"size:64;not null;index"`
	InvoiceID uint           `json:"invoice_id" gorm:"not null;uniqueIndex:idx_invoice_versions_invoice_id_version_no,priority:1"`
	VersionNo int            `json:"version_no" gorm:"not null;uniqueIndex:idx_invoice_versions_invoice_id_version_no,priority:2"`
	Kind      string         `json:"kind" gorm:"size:32;not null"`
	Snapshot  datatypes.JSON `json:"snapshot"`
	CreatedBy string         `json:"created_by" gorm:"size:128"`
	CreatedAt time.Time      `json:"created_at"`
}

// ContractRef is the read-only view of a platform contract the ledger bills against.
type ContractRef struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	TenantID string  `json:"tenant_id" gorm:"size:64;not null;index"`
	ClientID uint    `json:"client_id"`
	WorkerID *uint   `json:"worker_id"`
	Status   string  `json:"status" gorm:"size:32"`
	Number   *string `json:"contract_number" gorm:"size:64"`
}

// TableName maps ContractRef onto the platform's contracts table.
func (ContractRef) TableName() string {
	return "contracts"
}
