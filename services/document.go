package services

import (
	"context"

	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/database"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// InvoiceDocument is the data handed to the PDF renderer. Amounts are fixed two-decimal strings.
type InvoiceDocument struct {
	Number         string         `json:"number"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	IssueDate      string         `json:"issue_date"`
	DueDate        string         `json:"due_date"`
	Currency       string         `json:"currency"`
	ContractID     uint           `json:"contract_id"`
	ClientID       uint           `json:"client_id"`
	TenantTRN      *string        `json:"tenant_trn,omitempty"`
	ClientTRN      *string        `json:"client_trn,omitempty"`
	Lines          []DocumentLine `json:"lines"`
	Subtotal       string         `json:"subtotal"`
	DiscountAmount string         `json:"discount_amount"`
	TaxableAmount  string         `json:"taxable_amount"`
	VATRate        string         `json:"vat_rate"`
	VATAmount      string         `json:"vat_amount"`
	TotalAmount    string         `json:"total_amount"`
	PaidAmount     string         `json:"paid_amount"`
	BalanceDue     string         `json:"balance_due"`
	OriginalNumber *string        `json:"original_invoice_number,omitempty"`
	CreditReason   *string        `json:"credit_reason,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
}

// DocumentLine is one rendered line item.
type DocumentLine struct {
	LineNumber     int     `json:"line_number"`
	Description    string  `json:"description"`
	DescriptionAr  *string `json:"description_ar,omitempty"`
	ItemCode       *string `json:"item_code,omitempty"`
	Quantity       string  `json:"quantity"`
	UnitPrice      string  `json:"unit_price"`
	DiscountAmount string  `json:"discount_amount"`
	LineTotal      string  `json:"line_total"`
}

// Document builds the renderer payload for a finalized (non-Draft) invoice.
func (s *InvoiceService) Document(ctx context.Context, actor Actor, id uint) (*InvoiceDocument, error) {
	const op = "invoice.document"
	inv, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceDraft {
		return nil, apperrors.InvalidState(op, "draft invoices cannot be rendered, issue it first")
	}

	doc := &InvoiceDocument{
		Number:         inv.Label(),
		Type:           inv.Type.String(),
		Status:         inv.Status.String(),
		IssueDate:      utils.FormatDate(inv.IssueDate),
		DueDate:        utils.FormatDate(inv.DueDate),
		Currency:       inv.Currency,
		ContractID:     inv.ContractID,
		ClientID:       inv.ClientID,
		TenantTRN:      inv.TenantTRN,
		ClientTRN:      inv.ClientTRN,
		Subtotal:       utils.FormatMoney(inv.Subtotal),
		DiscountAmount: utils.FormatMoney(inv.DiscountAmount),
		TaxableAmount:  utils.FormatMoney(inv.TaxableAmount),
		VATRate:        inv.VATRate.StringFixed(4),
		VATAmount:      utils.FormatMoney(inv.VATAmount),
		TotalAmount:    utils.FormatMoney(inv.TotalAmount),
		PaidAmount:     utils.FormatMoney(inv.PaidAmount),
		BalanceDue:     utils.FormatMoney(inv.BalanceDue),
		CreditReason:   inv.CreditReason,
		Notes:          inv.Notes,
	}
	for _, l := range inv.Items {
		doc.Lines = append(doc.Lines, DocumentLine{
			LineNumber:     l.LineNumber,
			Description:    l.Description,
			DescriptionAr:  l.DescriptionAr,
			ItemCode:       l.ItemCode,
			Quantity:       l.Quantity.StringFixed(3),
			UnitPrice:      utils.FormatMoney(l.UnitPrice),
			DiscountAmount: utils.FormatMoney(l.DiscountAmount),
			LineTotal:      utils.FormatMoney(l.LineTotal),
		})
	}

	if inv.OriginalInvoiceID != nil {
		var orig models.Invoice
		err := s.read(ctx, op, func(db *gorm.DB) error {
			return db.Scopes(database.ForTenant(actor.TenantID)).
				Select("id", "invoice_number").First(&orig, *inv.OriginalInvoiceID).Error
		})
		if err != nil {
			return nil, err
		}
		doc.OriginalNumber = orig.InvoiceNumber
	}
	return doc, nil
}
