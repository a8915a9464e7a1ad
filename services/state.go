package services

import (
	"gorm.io/datatypes"

	"ledger-backend/apperrors"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// cause distinguishes user-driven status changes from those derived from paidAmount.
type cause int

const (
	causeManual cause = iota
	causePayment
)

// paymentDriven are moves only the payment processor may make, when a refund
// lowers paidAmount below what the current status implies.
var paymentDriven = map[models.InvoiceStatus][]models.InvoiceStatus{
	models.InvoicePaid:          {models.InvoicePartiallyPaid},
	models.InvoicePartiallyPaid: {models.InvoiceIssued},
}

// moveInvoice is the single place invoice status changes. Both manual transitions
// and payment-derived ones go through it so the money invariants hold for every state.
func moveInvoice(op string, inv *models.Invoice, target models.InvoiceStatus, by cause, today datatypes.Date) error {
	if inv.Status == target && by == causePayment {
		return nil
	}
	allowed := inv.Status.CanTransitionTo(target)
	if !allowed && by == causePayment {
		for _, s := range paymentDriven[inv.Status] {
			if s == target {
				allowed = true
			}
		}
	}
	if !allowed {
		return apperrors.InvalidTransition(op, inv.Status, target)
	}
	if err := guardStatus(op, inv, target, today); err != nil {
		return err
	}
	inv.Status = target
	return nil
}

// guardStatus checks that the money figures support the target status.
func guardStatus(op string, inv *models.Invoice, target models.InvoiceStatus, today datatypes.Date) error {
	paid, total := inv.PaidAmount, inv.TotalAmount
	switch target {
	case models.InvoiceIssued:
		if !total.IsPositive() {
			return apperrors.Validation(op, "cannot issue invoice: total amount must be greater than zero")
		}
		if !paid.IsZero() {
			return apperrors.InvalidState(op, "invoice has payments applied")
		}
	case models.InvoicePaid:
		if !paid.Equal(total) {
			return apperrors.InvalidState(op, "invoice is not fully paid (paid %s of %s)", utils.FormatMoney(paid), utils.FormatMoney(total))
		}
	case models.InvoicePartiallyPaid:
		if !paid.IsPositive() || !paid.LessThan(total) {
			return apperrors.InvalidState(op, "invoice is not partially paid (paid %s of %s)", utils.FormatMoney(paid), utils.FormatMoney(total))
		}
	case models.InvoiceOverdue:
		if !utils.DateBefore(inv.DueDate, today) {
			return apperrors.InvalidState(op, "invoice is not past its due date %s", utils.FormatDate(inv.DueDate))
		}
		if !total.Sub(paid).IsPositive() {
			return apperrors.InvalidState(op, "invoice has no balance due")
		}
	case models.InvoiceRefunded:
		if !paid.IsZero() {
			return apperrors.InvalidState(op, "invoice still has %s paid", utils.FormatMoney(paid))
		}
	}
	return nil
}

// derivedStatus is the status implied by paidAmount after a payment or refund.
// A cancelled invoice keeps its status while its payments are refunded.
func derivedStatus(inv *models.Invoice, today datatypes.Date) models.InvoiceStatus {
	paid, total := inv.PaidAmount, inv.TotalAmount
	switch {
	case inv.Status == models.InvoiceCancelled:
		return inv.Status
	case paid.Equal(total):
		return models.InvoicePaid
	case paid.IsZero():
		switch inv.Status {
		case models.InvoicePaid:
			return models.InvoiceRefunded
		case models.InvoicePartiallyPaid:
			if utils.DateBefore(inv.DueDate, today) {
				return models.InvoiceOverdue
			}
			return models.InvoiceIssued
		}
		return inv.Status
	default:
		if inv.Status == models.InvoiceOverdue {
			return models.InvoiceOverdue
		}
		return models.InvoicePartiallyPaid
	}
}
