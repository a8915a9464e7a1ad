package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-backend/apperrors"
	"ledger-backend/models"
)

func TestFullCreditNoteMirrorsInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.discounted(t)

	note, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: " worker absconded "})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceTypeCreditNote, note.Type)
	assert.Equal(t, models.InvoiceIssued, note.Status)
	assert.Equal(t, "CN-000001", *note.InvoiceNumber)
	assert.Equal(t, inv.ID, *note.OriginalInvoiceID)
	assert.Equal(t, "worker absconded", *note.CreditReason)
	assertMoney(t, "1000.00", note.Subtotal)
	assertMoney(t, "100.00", note.DiscountAmount)
	assertMoney(t, "45.00", note.VATAmount)
	assertMoney(t, "945.00", note.TotalAmount)
	assertMoney(t, "-945.00", note.SignedTotal())
	assertInvariants(t, note)

	stored := f.reload(t, note.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Monthly placement fee", stored.Items[0].Description)

	src := f.reload(t, inv.ID)
	assert.Equal(t, models.InvoiceIssued, src.Status, "source is left untouched")
	assertMoney(t, "945.00", src.TotalAmount)

	notes, err := f.ledger.CreditNotes.ListForInvoice(f.ctx, f.actor, inv.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
}

func TestPartialCreditNoteSplitsVAT(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "1000.00")
	f.pay(t, inv.ID, "100.00")

	note, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "two days unworked", Amount: moneyPtr("105.00")})
	require.NoError(t, err)
	assertMoney(t, "100.00", note.TaxableAmount)
	assertMoney(t, "5.00", note.VATAmount)
	assertMoney(t, "105.00", note.TotalAmount)
	assertMoney(t, "0.00", note.PaidAmount)
	require.Len(t, note.Items, 1)
	assert.Equal(t, "Credit: two days unworked", note.Items[0].Description)
	assertInvariants(t, note)
}

func TestCreditNoteRejections(t *testing.T) {
	f := newFixture(t)
	issued := f.issued(t, "100.00")

	_, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, issued.ID, CreditNoteInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "reason required")

	_, err = f.ledger.CreditNotes.Create(f.ctx, f.actor, issued.ID, CreditNoteInput{Reason: "x", Amount: moneyPtr("105.01")})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "more than total")

	draft := f.draft(t, "100.00")
	_, err = f.ledger.CreditNotes.Create(f.ctx, f.actor, draft.ID, CreditNoteInput{Reason: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	paid := f.issued(t, "100.00")
	f.pay(t, paid.ID, "105.00")
	_, err = f.ledger.CreditNotes.Create(f.ctx, f.actor, paid.ID, CreditNoteInput{Reason: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	note, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, issued.ID, CreditNoteInput{Reason: "x"})
	require.NoError(t, err)
	_, err = f.ledger.CreditNotes.Create(f.ctx, f.actor, note.ID, CreditNoteInput{Reason: "y"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.ledger.CreditNotes.Create(f.ctx, Actor{TenantID: "t2"}, issued.ID, CreditNoteInput{Reason: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreditNotesAreBoundedByInvoiceTotal(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "100.00")

	_, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "cancelled placement"})
	require.NoError(t, err)

	_, err = f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "cancelled placement"})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "already fully credited")
	_, err = f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "x", Amount: moneyPtr("0.01")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	sum, err := f.ledger.Invoices.Summary(f.ctx, f.actor, InvoiceFilter{})
	require.NoError(t, err)
	assertMoney(t, "105.00", sum.Invoiced)
	assertMoney(t, "105.00", sum.Credited)
	assertMoney(t, "0.00", sum.Net)
	assertMoney(t, "0.00", sum.Outstanding)
}

func TestCreditNoteDefaultsToRemainingAmount(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "1000.00") // total 1050.00

	_, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "two days unworked", Amount: moneyPtr("105.00")})
	require.NoError(t, err)

	_, err = f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "x", Amount: moneyPtr("945.01")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	rest, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "placement ended"})
	require.NoError(t, err)
	assertMoney(t, "945.00", rest.TotalAmount)
	assertMoney(t, "45.00", rest.VATAmount)
	assertMoney(t, "900.00", rest.TaxableAmount)
	assertInvariants(t, rest)

	notes, err := f.ledger.CreditNotes.ListForInvoice(f.ctx, f.actor, inv.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}
