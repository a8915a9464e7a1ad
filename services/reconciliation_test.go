package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"ledger-backend/apperrors"
	"ledger-backend/models"
	"ledger-backend/utils"
)

func TestGenerateReport(t *testing.T) {
	f := newFixture(t)
	a := f.issued(t, "1000.00")
	b := f.issued(t, "1000.00")
	f.pay(t, a.ID, "100.00")
	f.pay(t, a.ID, "50.25")
	_, err := f.ledger.Payments.Record(f.ctx, f.actor, b.ID, RecordPaymentInput{Amount: money("200.00"), Method: models.MethodCard, ReferenceNumber: strPtr("4242")})
	require.NoError(t, err)
	_, err = f.ledger.Payments.Record(f.ctx, f.actor, b.ID, RecordPaymentInput{Amount: money("70.00"), Method: models.MethodOnline, ReferenceNumber: strPtr("gw"), Pending: true})
	require.NoError(t, err)
	_, err = f.ledger.Payments.Record(f.ctx, f.actor, b.ID, RecordPaymentInput{Amount: money("30.00"), Method: models.MethodCash, PaymentDate: datePtr("2026-03-14")})
	require.NoError(t, err)

	report, err := f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
	require.NoError(t, err)
	assert.Equal(t, "XR-000001", report.ReportNumber)
	assert.Equal(t, 3, report.TransactionCount)
	assertMoney(t, "350.25", report.GrandTotal)
	assert.False(t, report.IsClosed)

	var lines []BreakdownLine
	require.NoError(t, json.Unmarshal(report.Breakdown, &lines))
	assert.Equal(t, []BreakdownLine{
		{Currency: "AED", Method: "Card", Count: 1, Total: "200.00"},
		{Currency: "AED", Method: "Cash", Count: 2, Total: "150.25"},
	}, lines)

	counted, err := f.ledger.Reports.Payments(f.ctx, f.actor, report.ID)
	require.NoError(t, err)
	assert.Len(t, counted, 3)

	_, err = f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "report already exists for date 2026-03-15")

	other, err := f.ledger.Reports.Generate(f.ctx, Actor{TenantID: "t2"}, date("2026-03-15"), nil)
	require.NoError(t, err)
	assert.Zero(t, other.TransactionCount)
	assertMoney(t, "0.00", other.GrandTotal)
}

func TestGenerateReportForCashier(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "1000.00")
	for _, cashier := range []string{"Aisha", "Omar", "Aisha"} {
		_, err := f.ledger.Payments.Record(f.ctx, f.actor, inv.ID, RecordPaymentInput{Amount: money("10.00"), Method: models.MethodCash, CashierName: strPtr(cashier)})
		require.NoError(t, err)
	}

	report, err := f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), strPtr("Aisha"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.TransactionCount)
	assertMoney(t, "20.00", report.GrandTotal)
	assert.Equal(t, "Aisha", *report.CashierName)
}

func TestCloseReport(t *testing.T) {
	f := newFixture(t)
	report, err := f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
	require.NoError(t, err)

	closed, err := f.ledger.Reports.Close(f.ctx, f.actor, report.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	assert.Equal(t, "Mona", *closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)

	_, err = f.ledger.Reports.Close(f.ctx, f.actor, report.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	err = f.ledger.Reports.Discard(f.ctx, f.actor, report.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.ledger.Reports.Close(f.ctx, Actor{TenantID: "t2"}, report.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDiscardReleasesPayments(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "1000.00")
	f.pay(t, inv.ID, "25.00")

	report, err := f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
	require.NoError(t, err)
	f.pay(t, inv.ID, "5.00")

	require.NoError(t, f.ledger.Reports.Discard(f.ctx, f.actor, report.ID))
	_, err = f.ledger.Reports.Get(f.ctx, f.actor, report.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	again, err := f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, again.TransactionCount)
	assertMoney(t, "30.00", again.GrandTotal)
	assert.Equal(t, "XR-000002", again.ReportNumber)
}

func TestListReports(t *testing.T) {
	f := newFixture(t)
	for _, d := range []string{"2026-03-13", "2026-03-14", "2026-03-15"} {
		_, err := f.ledger.Reports.Generate(f.ctx, f.actor, date(d), nil)
		require.NoError(t, err)
	}
	first, _, err := f.ledger.Reports.List(f.ctx, f.actor, ReportFilter{}, Page{})
	require.NoError(t, err)
	require.Len(t, first, 3)
	_, err = f.ledger.Reports.Close(f.ctx, f.actor, first[2].ID)
	require.NoError(t, err)

	open := false
	reports, total, err := f.ledger.Reports.List(f.ctx, f.actor, ReportFilter{Closed: &open, From: datePtr("2026-03-14")}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "2026-03-15", utils.FormatDate(reports[0].ReportDate))
}

func TestReportDate(t *testing.T) {
	f := newFixture(t)
	d, err := f.ledger.Reports.ReportDate("")
	require.NoError(t, err)
	assert.Equal(t, date("2026-03-15"), d)

	_, err = f.ledger.Reports.ReportDate("15/03/2026")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestConcurrentGenerateOneReportPerDate(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "1000.00")
	for _, amount := range []string{"10.00", "20.00", "30.00"} {
		f.pay(t, inv.ID, amount)
	}

	const n = 5
	reports := make([]*models.CashReconciliationReport, n)
	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			reports[i], errs[i] = f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var winner *models.CashReconciliationReport
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "more than one report generated")
			winner = reports[i]
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	}
	require.NotNil(t, winner)
	assert.Equal(t, 3, winner.TransactionCount)
	assertMoney(t, "60.00", winner.GrandTotal)

	counted, err := f.ledger.Reports.Payments(f.ctx, f.actor, winner.ID)
	require.NoError(t, err)
	assert.Len(t, counted, 3)

	payments, _, err := f.ledger.Payments.List(f.ctx, f.actor, PaymentFilter{InvoiceID: &inv.ID}, Page{})
	require.NoError(t, err)
	require.Len(t, payments, 3)
	for _, p := range payments {
		require.NotNil(t, p.CashReportID)
		assert.Equal(t, winner.ID, *p.CashReportID)
	}

	all, total, err := f.ledger.Reports.List(f.ctx, f.actor, ReportFilter{}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, all, 1)
}

func TestGenerateReportKeepsCurrenciesApart(t *testing.T) {
	f := newFixture(t)
	usd, err := f.ledger.Invoices.Create(f.ctx, f.actor, CreateInvoiceInput{
		ContractID: contractT1,
		Currency:   "usd",
		VATRate:    money("0.05"),
		DueDate:    datePtr("2026-03-30"),
		Items:      []LineItemInput{{Description: "Visa processing", Quantity: money("1"), UnitPrice: money("100.00")}},
	})
	require.NoError(t, err)
	_, err = f.ledger.Invoices.Issue(f.ctx, f.actor, usd.ID)
	require.NoError(t, err)
	aed := f.issued(t, "1000.00")
	f.pay(t, usd.ID, "40.00")
	f.pay(t, aed.ID, "100.00")

	report, err := f.ledger.Reports.Generate(f.ctx, f.actor, date("2026-03-15"), nil)
	require.NoError(t, err)

	var lines []BreakdownLine
	require.NoError(t, json.Unmarshal(report.Breakdown, &lines))
	assert.Equal(t, []BreakdownLine{
		{Currency: "AED", Method: "Cash", Count: 1, Total: "100.00"},
		{Currency: "USD", Method: "Cash", Count: 1, Total: "40.00"},
	}, lines)
	assert.Equal(t, 2, report.TransactionCount)
	// Not a money figure once currencies mix; the breakdown carries the per-currency totals.
	assertMoney(t, "140.00", report.GrandTotal)
}
