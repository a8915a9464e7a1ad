package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger-backend/apperrors"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// LineItemInput is one billable line of a draft invoice.
type LineItemInput struct {
	Description    string
	DescriptionAr  *string
	ItemCode       *string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
}

var maxVATRate = decimal.NewFromInt(1)

// buildLines validates items and numbers them 1..n. It returns the lines and their subtotal.
func buildLines(op string, items []LineItemInput) ([]models.InvoiceLineItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, apperrors.Validation(op, "invoice must have at least one line item")
	}
	lines := make([]models.InvoiceLineItem, 0, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		n := i + 1
		if strings.TrimSpace(it.Description) == "" {
			return nil, decimal.Zero, apperrors.Validation(op, "line %d: description is required", n)
		}
		if !it.Quantity.IsPositive() {
			return nil, decimal.Zero, apperrors.Validation(op, "line %d: quantity must be greater than zero", n)
		}
		if !it.Quantity.Equal(it.Quantity.Round(3)) {
			return nil, decimal.Zero, apperrors.Validation(op, "line %d: quantity has more than 3 decimal places", n)
		}
		if it.UnitPrice.IsNegative() || !utils.IsMoney(it.UnitPrice) {
			return nil, decimal.Zero, apperrors.Validation(op, "line %d: unit price must be a non-negative amount with 2 decimals", n)
		}
		if it.DiscountAmount.IsNegative() || !utils.IsMoney(it.DiscountAmount) {
			return nil, decimal.Zero, apperrors.Validation(op, "line %d: discount must be a non-negative amount with 2 decimals", n)
		}
		gross := utils.Round(it.Quantity.Mul(it.UnitPrice))
		if it.DiscountAmount.GreaterThan(gross) {
			return nil, decimal.Zero, apperrors.Validation(op, "line %d: discount %s exceeds line amount %s", n, utils.FormatMoney(it.DiscountAmount), utils.FormatMoney(gross))
		}
		line := models.InvoiceLineItem{
			LineNumber:     n,
			Description:    strings.TrimSpace(it.Description),
			DescriptionAr:  it.DescriptionAr,
			ItemCode:       it.ItemCode,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			DiscountAmount: it.DiscountAmount,
			LineTotal:      gross.Sub(it.DiscountAmount),
		}
		subtotal = subtotal.Add(line.LineTotal)
		lines = append(lines, line)
	}
	return lines, subtotal, nil
}

func checkVATRate(op string, rate decimal.Decimal) error {
	if rate.IsNegative() || !rate.LessThan(maxVATRate) {
		return apperrors.Validation(op, "vat rate must be in [0, 1), got %s", rate)
	}
	if !rate.Equal(rate.Round(4)) {
		return apperrors.Validation(op, "vat rate has more than 4 decimal places")
	}
	return nil
}

// recalculate derives discount, taxable amount, VAT, total and balance from
// subtotal, the stored discount terms and the VAT rate.
func recalculate(inv *models.Invoice) {
	discount := decimal.Zero
	if inv.DiscountPercentage != nil {
		discount = utils.PercentageOf(inv.Subtotal, *inv.DiscountPercentage)
		if inv.DiscountCap != nil {
			discount = utils.MinMoney(discount, *inv.DiscountCap)
		}
		discount = utils.MinMoney(discount, inv.Subtotal)
	}
	inv.DiscountAmount = discount
	inv.TaxableAmount = inv.Subtotal.Sub(discount)
	inv.VATAmount = utils.ApplyRate(inv.TaxableAmount, inv.VATRate)
	inv.TotalAmount = inv.TaxableAmount.Add(inv.VATAmount)
	inv.RefreshBalance()
}

// checkTotals verifies the stored figures are internally consistent.
func checkTotals(inv *models.Invoice) error {
	if !inv.TaxableAmount.Equal(inv.Subtotal.Sub(inv.DiscountAmount)) {
		return fmt.Errorf("invoice %d: taxable %s != subtotal %s - discount %s", inv.ID, inv.TaxableAmount, inv.Subtotal, inv.DiscountAmount)
	}
	if !inv.TotalAmount.Equal(utils.Round(inv.TaxableAmount.Add(inv.VATAmount))) {
		return fmt.Errorf("invoice %d: total %s != taxable %s + vat %s", inv.ID, inv.TotalAmount, inv.TaxableAmount, inv.VATAmount)
	}
	return nil
}
