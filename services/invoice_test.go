package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-backend/apperrors"
	"ledger-backend/models"
	"ledger-backend/utils"
)

func TestCreateInvoiceComputesTotals(t *testing.T) {
	f := newFixture(t)

	inv, err := f.ledger.Invoices.Create(f.ctx, f.actor, CreateInvoiceInput{
		ContractID: contractT1,
		Currency:   "AED",
		VATRate:    money("0.05"),
		Items: []LineItemInput{
			{Description: "Housemaid placement", Quantity: money("2"), UnitPrice: money("333.33"), DiscountAmount: money("6.66")},
			{Description: "Visa processing", Quantity: money("1.5"), UnitPrice: money("100.01")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceDraft, inv.Status)
	assert.Nil(t, inv.InvoiceNumber)
	assert.Equal(t, clientT1, inv.ClientID)
	assert.Equal(t, "AED", inv.Currency)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, 1, inv.Items[0].LineNumber)
	assert.Equal(t, 2, inv.Items[1].LineNumber)
	assertMoney(t, "660.00", inv.Items[0].LineTotal)
	assertMoney(t, "150.02", inv.Items[1].LineTotal) // 150.015 rounds half away from zero
	assertMoney(t, "810.02", inv.Subtotal)
	assertMoney(t, "40.50", inv.VATAmount) // 40.501
	assertMoney(t, "850.52", inv.TotalAmount)
	assertMoney(t, "850.52", inv.BalanceDue)
	assertInvariants(t, inv)

	stored := f.reload(t, inv.ID)
	assertMoney(t, "850.52", stored.TotalAmount)
	assertMoney(t, "850.52", stored.BalanceDue)
	assert.Equal(t, "2026-03-15", utils.FormatDate(stored.IssueDate))
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newFixture(t)
	line := []LineItemInput{{Description: "Fee", Quantity: money("1"), UnitPrice: money("10.00")}}

	tests := []struct {
		name string
		in   CreateInvoiceInput
		kind apperrors.Kind
	}{
		{"no line items", CreateInvoiceInput{ContractID: contractT1, Currency: "AED"}, apperrors.KindValidation},
		{"zero quantity", CreateInvoiceInput{ContractID: contractT1, Currency: "AED", Items: []LineItemInput{{Description: "Fee", Quantity: money("0"), UnitPrice: money("1")}}}, apperrors.KindValidation},
		{"negative price", CreateInvoiceInput{ContractID: contractT1, Currency: "AED", Items: []LineItemInput{{Description: "Fee", Quantity: money("1"), UnitPrice: money("-1")}}}, apperrors.KindValidation},
		{"line discount above amount", CreateInvoiceInput{ContractID: contractT1, Currency: "AED", Items: []LineItemInput{{Description: "Fee", Quantity: money("1"), UnitPrice: money("5"), DiscountAmount: money("6")}}}, apperrors.KindValidation},
		{"missing description", CreateInvoiceInput{ContractID: contractT1, Currency: "AED", Items: []LineItemInput{{Quantity: money("1"), UnitPrice: money("5")}}}, apperrors.KindValidation},
		{"bad currency", CreateInvoiceInput{ContractID: contractT1, Currency: "XXY", Items: line}, apperrors.KindValidation},
		{"vat rate out of range", CreateInvoiceInput{ContractID: contractT1, Currency: "AED", VATRate: money("1.5"), Items: line}, apperrors.KindValidation},
		{"credit note type", CreateInvoiceInput{ContractID: contractT1, Currency: "AED", Type: models.InvoiceTypeCreditNote, Items: line}, apperrors.KindValidation},
		{"due before issue", CreateInvoiceInput{ContractID: contractT1, Currency: "AED", IssueDate: datePtr("2026-03-10"), DueDate: datePtr("2026-03-01"), Items: line}, apperrors.KindValidation},
		{"client mismatch", CreateInvoiceInput{ContractID: contractT1, ClientID: 99, Currency: "AED", Items: line}, apperrors.KindValidation},
		{"unknown contract", CreateInvoiceInput{ContractID: 404, Currency: "AED", Items: line}, apperrors.KindNotFound},
		{"other tenant's contract", CreateInvoiceInput{ContractID: contractT2, Currency: "AED", Items: line}, apperrors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Invoices.Create(f.ctx, f.actor, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}

	_, err := f.ledger.Invoices.Create(f.ctx, Actor{}, CreateInvoiceInput{ContractID: contractT1, Currency: "AED", Items: line})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIssueAssignsNumbersAndRejectsReissue(t *testing.T) {
	f := newFixture(t)

	first := f.issued(t, "100.00")
	second := f.issued(t, "50.00")
	require.NotNil(t, first.InvoiceNumber)
	assert.Equal(t, "INV-000001", *first.InvoiceNumber)
	assert.Equal(t, "INV-000002", *second.InvoiceNumber)
	assert.Equal(t, models.InvoiceIssued, first.Status)
	assert.NotNil(t, first.IssuedAt)

	_, err := f.ledger.Invoices.Issue(f.ctx, f.actor, first.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	proforma, err := f.ledger.Invoices.Create(f.ctx, f.actor, CreateInvoiceInput{
		ContractID: contractT1, Currency: "AED", Type: models.InvoiceTypeProformaDeposit,
		Items: []LineItemInput{{Description: "Deposit", Quantity: money("1"), UnitPrice: money("500.00")}},
	})
	require.NoError(t, err)
	proforma, err = f.ledger.Invoices.Issue(f.ctx, f.actor, proforma.ID)
	require.NoError(t, err)
	assert.Equal(t, "PRO-000001", *proforma.InvoiceNumber)
}

func TestIssueRequiresPositiveTotal(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(t, "0.00")

	_, err := f.ledger.Invoices.Issue(f.ctx, f.actor, inv.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, models.InvoiceDraft, f.reload(t, inv.ID).Status)
}

func TestUpdateDraft(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(t, "100.00")

	updated, err := f.ledger.Invoices.UpdateDraft(f.ctx, f.actor, inv.ID, UpdateDraftInput{
		VATRate: moneyPtr("0"),
		Notes:   strPtr("March"),
		Items: []LineItemInput{
			{Description: "A", Quantity: money("1"), UnitPrice: money("10.00")},
			{Description: "B", Quantity: money("3"), UnitPrice: money("5.00")},
		},
	})
	require.NoError(t, err)
	assertMoney(t, "25.00", updated.Subtotal)
	assertMoney(t, "0.00", updated.VATAmount)
	assertMoney(t, "25.00", updated.TotalAmount)

	stored := f.reload(t, inv.ID)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "B", stored.Items[1].Description)
	assert.Equal(t, "March", *stored.Notes)

	_, err = f.ledger.Invoices.Issue(f.ctx, f.actor, inv.ID)
	require.NoError(t, err)
	_, err = f.ledger.Invoices.UpdateDraft(f.ctx, f.actor, inv.ID, UpdateDraftInput{Notes: strPtr("late edit")})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	f := newFixture(t)
	draft := f.draft(t, "100.00")
	issued := f.issued(t, "100.00")

	err := f.ledger.Invoices.Delete(f.ctx, f.actor, issued.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	require.NoError(t, f.ledger.Invoices.Delete(f.ctx, f.actor, draft.ID))
	_, err = f.ledger.Invoices.Get(f.ctx, f.actor, draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	var lines int64
	require.NoError(t, f.db.Model(&models.InvoiceLineItem{}).Where("invoice_id = ?", draft.ID).Count(&lines).Error)
	assert.Zero(t, lines)
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "100.00")
	other := Actor{TenantID: "t2", UserID: "u9"}

	_, err := f.ledger.Invoices.Get(f.ctx, other, inv.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.ledger.Payments.Record(f.ctx, other, inv.ID, RecordPaymentInput{Amount: money("1"), Method: models.MethodCash})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	list, total, err := f.ledger.Invoices.List(f.ctx, other, InvoiceFilter{}, Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestTransitionStatus(t *testing.T) {
	f := newFixture(t)

	t.Run("draft to cancelled", func(t *testing.T) {
		inv := f.draft(t, "10.00")
		got, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceCancelled, strPtr("duplicate"))
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceCancelled, got.Status)
		assert.Equal(t, "duplicate", *f.reload(t, inv.ID).StatusReason)
	})

	t.Run("draft to issued delegates to issue", func(t *testing.T) {
		inv := f.draft(t, "10.00")
		got, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceIssued, nil)
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceIssued, got.Status)
		assert.NotNil(t, got.InvoiceNumber)
	})

	t.Run("not in table", func(t *testing.T) {
		inv := f.draft(t, "10.00")
		_, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoicePaid, nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("paid requires full payment", func(t *testing.T) {
		inv := f.issued(t, "10.00")
		_, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoicePaid, nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("partially paid to cancelled keeps payments", func(t *testing.T) {
		inv := f.issued(t, "100.00")
		p := f.pay(t, inv.ID, "10.00")
		require.Equal(t, models.InvoicePartiallyPaid, f.reload(t, inv.ID).Status)

		got, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceCancelled, strPtr("contract terminated"))
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceCancelled, got.Status)
		assertMoney(t, "10.00", got.PaidAmount)

		_, err = f.ledger.Payments.Record(f.ctx, f.actor, inv.ID, RecordPaymentInput{Amount: money("1.00"), Method: models.MethodCash})
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)

		_, err = f.ledger.Payments.Refund(f.ctx, f.actor, p.ID, RefundInput{Reason: "contract terminated"})
		require.NoError(t, err)
		stored := f.reload(t, inv.ID)
		assert.Equal(t, models.InvoiceCancelled, stored.Status)
		assertMoney(t, "0.00", stored.PaidAmount)
	})

	t.Run("overdue with payments to cancelled", func(t *testing.T) {
		inv := f.issued(t, "100.00")
		f.pay(t, inv.ID, "10.00")
		f.now = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
		defer func() { f.now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) }()
		_, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceOverdue, nil)
		require.NoError(t, err)

		got, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceCancelled, nil)
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceCancelled, got.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		inv := f.draft(t, "10.00")
		_, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceStatus("Lost"), nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestOverdueTransitions(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "100.00") // due 2026-03-30

	_, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceOverdue, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState, "not yet due")

	f.now = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	got, err := f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceOverdue, nil)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceOverdue, got.Status)

	_, err = f.ledger.Invoices.TransitionStatus(f.ctx, f.actor, inv.ID, models.InvoiceIssued, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	// A partial payment keeps it Overdue; paying the rest settles it.
	f.pay(t, inv.ID, "50.00")
	assert.Equal(t, models.InvoiceOverdue, f.reload(t, inv.ID).Status)
	f.pay(t, inv.ID, "55.00")
	final := f.reload(t, inv.ID)
	assert.Equal(t, models.InvoicePaid, final.Status)
	assertInvariants(t, final)
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	due := f.issued(t, "100.00")
	partial := f.issued(t, "100.00")
	f.pay(t, partial.ID, "10.00")
	paid := f.issued(t, "100.00")
	f.pay(t, paid.ID, "105.00")
	draft := f.draft(t, "100.00")

	n, err := f.ledger.Invoices.MarkOverdue(f.ctx, "", date("2026-03-30"))
	require.NoError(t, err)
	assert.Zero(t, n, "due date is not before as-of")

	n, err = f.ledger.Invoices.MarkOverdue(f.ctx, "t1", date("2026-03-31"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.InvoiceOverdue, f.reload(t, due.ID).Status)
	assert.Equal(t, models.InvoiceOverdue, f.reload(t, partial.ID).Status)
	assert.Equal(t, models.InvoicePaid, f.reload(t, paid.ID).Status)
	assert.Equal(t, models.InvoiceDraft, f.reload(t, draft.ID).Status)
}

func TestListAndSummary(t *testing.T) {
	f := newFixture(t)
	a := f.issued(t, "1000.00") // 1050.00
	f.pay(t, a.ID, "50.00")
	f.issued(t, "100.00") // 105.00
	f.draft(t, "999.00")
	_, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, a.ID, CreditNoteInput{Reason: "goodwill", Amount: moneyPtr("105.00")})
	require.NoError(t, err)

	issued := models.InvoiceIssued
	list, total, err := f.ledger.Invoices.List(f.ctx, f.actor, InvoiceFilter{Status: &issued}, Page{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "second invoice and the credit note")
	assert.Len(t, list, 1)

	sum, err := f.ledger.Invoices.Summary(f.ctx, f.actor, InvoiceFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum.Count)
	assertMoney(t, "1155.00", sum.Invoiced)
	assertMoney(t, "105.00", sum.Credited)
	assertMoney(t, "1050.00", sum.Net)
	assertMoney(t, "50.00", sum.Paid)
	assertMoney(t, "1000.00", sum.Outstanding)
}

func TestVersionsTrackChanges(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "100.00")
	f.pay(t, inv.ID, "105.00")

	versions, err := f.ledger.Invoices.Versions(f.ctx, f.actor, inv.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	kinds := []string{versions[0].Kind, versions[1].Kind, versions[2].Kind}
	assert.Equal(t, []string{"created", "issued", "payment"}, kinds)
	assert.Equal(t, 3, versions[2].VersionNo)

	var snap models.Invoice
	require.NoError(t, json.Unmarshal(versions[2].Snapshot, &snap))
	assert.Equal(t, models.InvoicePaid, snap.Status)
	assertMoney(t, "105.00", snap.PaidAmount)

	_, err = f.ledger.Invoices.Versions(f.ctx, f.actor, 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDocument(t *testing.T) {
	f := newFixture(t)
	draft := f.draft(t, "100.00")
	_, err := f.ledger.Invoices.Document(f.ctx, f.actor, draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	inv := f.issued(t, "100.00")
	doc, err := f.ledger.Invoices.Document(f.ctx, f.actor, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, *inv.InvoiceNumber, doc.Number)
	assert.Equal(t, "105.00", doc.TotalAmount)
	assert.Equal(t, "0.0500", doc.VATRate)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "1.000", doc.Lines[0].Quantity)

	note, err := f.ledger.CreditNotes.Create(f.ctx, f.actor, inv.ID, CreditNoteInput{Reason: "error"})
	require.NoError(t, err)
	ndoc, err := f.ledger.Invoices.Document(f.ctx, f.actor, note.ID)
	require.NoError(t, err)
	require.NotNil(t, ndoc.OriginalNumber)
	assert.Equal(t, *inv.InvoiceNumber, *ndoc.OriginalNumber)
}
