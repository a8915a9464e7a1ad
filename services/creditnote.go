package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/database"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// CreditNoteService derives credit notes from issued invoices.
//
// Credit notes are stored with positive amounts and Type=CreditNote; every
// aggregate reads them through Invoice.SignedTotal. The source invoice is never
// modified.
type CreditNoteService struct {
	*base
}

// CreditNoteInput describes a credit. A nil Amount credits whatever is still creditable.
type CreditNoteInput struct {
	Reason string
	Amount *decimal.Decimal
}

// Create issues a credit note against an Issued or PartiallyPaid invoice.
func (s *CreditNoteService) Create(ctx context.Context, actor Actor, invoiceID uint, in CreditNoteInput) (*models.Invoice, error) {
	const op = "creditnote.create"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperrors.Validation(op, "credit reason is required")
	}
	if in.Amount != nil {
		if err := checkAmount(op, "credit amount", *in.Amount); err != nil {
			return nil, err
		}
	}

	var note *models.Invoice
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var src models.Invoice
		err := tx.Scopes(database.ForTenant(actor.TenantID), database.ForUpdate).First(&src, invoiceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invoiceNotFound(op, invoiceID)
		}
		if err != nil {
			return err
		}
		if src.Type == models.InvoiceTypeCreditNote {
			return apperrors.InvalidState(op, "cannot credit a credit note")
		}
		if src.Status != models.InvoiceIssued && src.Status != models.InvoicePartiallyPaid {
			return apperrors.InvalidState(op, "credit notes can only be raised against Issued or PartiallyPaid invoices, invoice %s is %s", src.Label(), src.Status)
		}
		credited, err := creditedTotal(tx, &src)
		if err != nil {
			return err
		}
		creditable := src.TotalAmount.Sub(credited)
		if !creditable.IsPositive() {
			return apperrors.Validation(op, "invoice %s is already fully credited", src.Label())
		}
		amount := creditable
		if in.Amount != nil {
			amount = *in.Amount
		}
		if amount.GreaterThan(creditable) {
			return apperrors.Validation(op, "credit amount %s exceeds creditable amount %s on invoice %s",
				utils.FormatMoney(amount), utils.FormatMoney(creditable), src.Label())
		}

		if amount.Equal(src.TotalAmount) {
			if err := tx.Where("invoice_id = ?", src.ID).Order("line_number").Find(&src.Items).Error; err != nil {
				return err
			}
			note = fullCredit(&src)
		} else {
			note = partialCredit(&src, amount, reason)
		}

		number, err := database.NextFormatted(tx, actor.TenantID, database.SeqCreditNote)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		srcID := src.ID
		note.InvoiceNumber = &number
		note.OriginalInvoiceID = &srcID
		note.CreditReason = &reason
		note.IssueDate = s.today()
		note.DueDate = note.IssueDate
		note.IssuedAt = &now
		note.CreatedBy = actor.audit()
		if err := checkTotals(note); err != nil {
			return err
		}
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		return appendVersion(tx, note, "created", actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("credit_note", note.Label()).Uint("invoice_id", invoiceID).
		Str("amount", utils.FormatMoney(note.TotalAmount)).Msg("credit note issued")
	return note, nil
}

// creditedTotal sums the credit notes already raised against src. src must be locked.
func creditedTotal(tx *gorm.DB, src *models.Invoice) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	err := tx.Model(&models.Invoice{}).
		Where("tenant_id = ? AND type = ? AND original_invoice_id = ?", src.TenantID, models.InvoiceTypeCreditNote, src.ID).
		Pluck("total_amount", &totals).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, totals...), nil
}

// creditShell copies the identity of src onto a new Issued credit note.
func creditShell(src *models.Invoice) *models.Invoice {
	return &models.Invoice{
		TenantID:   src.TenantID,
		ContractID: src.ContractID,
		ClientID:   src.ClientID,
		WorkerID:   src.WorkerID,
		Type:       models.InvoiceTypeCreditNote,
		Status:     models.InvoiceIssued,
		Currency:   src.Currency,
		VATRate:    src.VATRate,
		PaidAmount: decimal.Zero,
		TenantTRN:  src.TenantTRN,
		ClientTRN:  src.ClientTRN,
	}
}

// fullCredit mirrors every figure and line of src.
func fullCredit(src *models.Invoice) *models.Invoice {
	note := creditShell(src)
	note.Subtotal = src.Subtotal
	note.DiscountAmount = src.DiscountAmount
	note.DiscountProgramID = src.DiscountProgramID
	note.DiscountPercentage = src.DiscountPercentage
	note.DiscountCap = src.DiscountCap
	note.TaxableAmount = src.TaxableAmount
	note.VATAmount = src.VATAmount
	note.TotalAmount = src.TotalAmount
	for _, l := range src.Items {
		note.Items = append(note.Items, models.InvoiceLineItem{
			LineNumber:     l.LineNumber,
			Description:    l.Description,
			DescriptionAr:  l.DescriptionAr,
			ItemCode:       l.ItemCode,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			DiscountAmount: l.DiscountAmount,
			LineTotal:      l.LineTotal,
		})
	}
	note.RefreshBalance()
	return note
}

// partialCredit treats amount as VAT-inclusive and splits out the tax at the source rate.
func partialCredit(src *models.Invoice, amount decimal.Decimal, reason string) *models.Invoice {
	note := creditShell(src)
	vat := utils.Round(amount.Mul(src.VATRate).Div(decimal.NewFromInt(1).Add(src.VATRate)))
	taxable := amount.Sub(vat)
	note.Subtotal = taxable
	note.DiscountAmount = decimal.Zero
	note.TaxableAmount = taxable
	note.VATAmount = vat
	note.TotalAmount = amount
	note.Items = []models.InvoiceLineItem{{
		LineNumber:     1,
		Description:    "Credit: " + reason,
		Quantity:       decimal.NewFromInt(1),
		UnitPrice:      taxable,
		DiscountAmount: decimal.Zero,
		LineTotal:      taxable,
	}}
	note.RefreshBalance()
	return note
}

// ListForInvoice returns the credit notes raised against an invoice.
func (s *CreditNoteService) ListForInvoice(ctx context.Context, actor Actor, invoiceID uint) ([]models.Invoice, error) {
	const op = "creditnote.list"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var notes []models.Invoice
	err := s.read(ctx, op, func(db *gorm.DB) error {
		return db.Scopes(database.ForTenant(actor.TenantID)).
			Where("type = ? AND original_invoice_id = ?", models.InvoiceTypeCreditNote, invoiceID).
			Order("id").Find(&notes).Error
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}
