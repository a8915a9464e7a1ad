package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ledger-backend/database/dbtest"
	"ledger-backend/logger"
	"ledger-backend/models"
	"ledger-backend/utils"
)

const (
	contractT1 uint = 10
	contractT2 uint = 20
	clientT1   uint = 7
)

type fixture struct {
	db     *gorm.DB
	ledger *Ledger
	actor  Actor
	now    time.Time
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	require.NoError(t, db.Create(&models.ContractRef{ID: contractT1, TenantID: "t1", ClientID: clientT1, Status: "Active"}).Error)
	require.NoError(t, db.Create(&models.ContractRef{ID: contractT2, TenantID: "t2", ClientID: 8, Status: "Active"}).Error)

	f := &fixture{
		db:    db,
		actor: Actor{TenantID: "t1", UserID: "u1", Name: "Mona"},
		now:   time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
		ctx:   context.Background(),
	}
	f.ledger = NewLedger(db, Options{
		Now:    func() time.Time { return f.now },
		Logger: logger.Nop(),
	})
	return f
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func date(s string) datatypes.Date {
	d, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *datatypes.Date {
	d := date(s)
	return &d
}

func strPtr(s string) *string { return &s }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

// draft creates a Draft invoice with a single line of the given unit price at 5% VAT, due 2026-03-30.
func (f *fixture) draft(t *testing.T, unitPrice string) *models.Invoice {
	t.Helper()
	inv, err := f.ledger.Invoices.Create(f.ctx, f.actor, CreateInvoiceInput{
		ContractID: contractT1,
		Currency:   "aed",
		VATRate:    money("0.05"),
		DueDate:    datePtr("2026-03-30"),
		Items: []LineItemInput{
			{Description: "Monthly placement fee", Quantity: money("1"), UnitPrice: money(unitPrice)},
		},
	})
	require.NoError(t, err)
	return inv
}

// issued creates and issues an invoice.
func (f *fixture) issued(t *testing.T, unitPrice string) *models.Invoice {
	t.Helper()
	inv := f.draft(t, unitPrice)
	inv, err := f.ledger.Invoices.Issue(f.ctx, f.actor, inv.ID)
	require.NoError(t, err)
	return inv
}

func (f *fixture) pay(t *testing.T, invoiceID uint, amount string) *models.Payment {
	t.Helper()
	p, err := f.ledger.Payments.Record(f.ctx, f.actor, invoiceID, RecordPaymentInput{
		Amount: money(amount),
		Method: models.MethodCash,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) reload(t *testing.T, id uint) *models.Invoice {
	t.Helper()
	inv, err := f.ledger.Invoices.Get(f.ctx, f.actor, id)
	require.NoError(t, err)
	return inv
}

func (f *fixture) program(t *testing.T, in ProgramInput) *models.DiscountProgram {
	t.Helper()
	if in.Name == "" {
		in.Name = "Loyalty"
	}
	if in.Type == "" {
		in.Type = models.DiscountCustom
	}
	p, err := f.ledger.Discounts.CreateProgram(f.ctx, f.actor, in)
	require.NoError(t, err)
	return p
}

// assertInvariants checks the stored totals relations for an invoice.
func assertInvariants(t *testing.T, inv *models.Invoice) {
	t.Helper()
	assert.True(t, inv.TaxableAmount.Equal(inv.Subtotal.Sub(inv.DiscountAmount)), "taxable = subtotal - discount")
	assert.True(t, inv.TotalAmount.Equal(utils.Round(inv.TaxableAmount.Add(inv.VATAmount))), "total = taxable + vat")
	assert.True(t, inv.BalanceDue.Equal(inv.TotalAmount.Sub(inv.PaidAmount)), "balance = total - paid")
	assert.False(t, inv.BalanceDue.IsNegative(), "balance never negative")
	if inv.Status == models.InvoicePartiallyPaid || inv.Status == models.InvoicePaid {
		assert.True(t, inv.PaidAmount.IsPositive(), "paid > 0")
		assert.False(t, inv.PaidAmount.GreaterThan(inv.TotalAmount), "paid <= total")
	}
}
