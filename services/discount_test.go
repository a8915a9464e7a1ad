package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-backend/apperrors"
	"ledger-backend/models"
)

func TestApplyDiscountUncapped(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(t, "1000.00")
	program := f.program(t, ProgramInput{DiscountPercentage: money("10"), IsActive: true})

	got, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, program.ID, nil)
	require.NoError(t, err)
	assertMoney(t, "100.00", got.DiscountAmount)
	assertMoney(t, "900.00", got.TaxableAmount)
	assertMoney(t, "45.00", got.VATAmount)
	assertMoney(t, "945.00", got.TotalAmount)
	assertMoney(t, "945.00", got.BalanceDue)
	assertInvariants(t, got)

	stored := f.reload(t, inv.ID)
	assertMoney(t, "945.00", stored.TotalAmount)
	require.NotNil(t, stored.DiscountProgramID)
	assert.Equal(t, program.ID, *stored.DiscountProgramID)
}

func TestApplyDiscountCapped(t *testing.T) {
	f := newFixture(t)
	inv := f.issued(t, "1000.00")
	program := f.program(t, ProgramInput{
		Name:               "Fazaa",
		Type:               models.DiscountFazaa,
		DiscountPercentage: money("20"),
		MaxDiscountAmount:  moneyPtr("150.00"),
		IsActive:           true,
	})

	_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, program.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "membership card required")

	got, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, program.ID, strPtr(" FZ-1001 "))
	require.NoError(t, err)
	assertMoney(t, "150.00", got.DiscountAmount)
	assertMoney(t, "850.00", got.TaxableAmount)
	assertMoney(t, "42.50", got.VATAmount)
	assertMoney(t, "892.50", got.TotalAmount)
	assert.Equal(t, "FZ-1001", *got.DiscountCardNumber)
	assert.Equal(t, models.InvoiceIssued, got.Status)
}

func TestApplyDiscountReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(t, "1000.00")
	ten := f.program(t, ProgramInput{Name: "Ten", DiscountPercentage: money("10"), IsActive: true})
	five := f.program(t, ProgramInput{Name: "Five", DiscountPercentage: money("5"), IsActive: true})

	_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, ten.ID, nil)
	require.NoError(t, err)
	got, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, five.ID, nil)
	require.NoError(t, err)

	assertMoney(t, "50.00", got.DiscountAmount)
	assertMoney(t, "997.50", got.TotalAmount)
	assert.Equal(t, five.ID, *got.DiscountProgramID)
}

func TestApplyDiscountRejections(t *testing.T) {
	f := newFixture(t)
	active := f.program(t, ProgramInput{DiscountPercentage: money("10"), IsActive: true})

	t.Run("inactive program", func(t *testing.T) {
		inv := f.draft(t, "100.00")
		p := f.program(t, ProgramInput{DiscountPercentage: money("10")})
		_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, p.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("deleted program", func(t *testing.T) {
		inv := f.draft(t, "100.00")
		p := f.program(t, ProgramInput{DiscountPercentage: money("10"), IsActive: true})
		require.NoError(t, f.ledger.Discounts.DeleteProgram(f.ctx, f.actor, p.ID))
		_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, p.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("outside validity window", func(t *testing.T) {
		inv := f.draft(t, "100.00")
		p := f.program(t, ProgramInput{DiscountPercentage: money("10"), IsActive: true, ValidFrom: datePtr("2026-01-01"), ValidTo: datePtr("2026-02-28")})
		_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, p.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		inv := f.draft(t, "100.00")
		p := f.program(t, ProgramInput{DiscountPercentage: money("10"), IsActive: true, Currency: strPtr("usd")})
		_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, p.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("partially paid invoice", func(t *testing.T) {
		inv := f.issued(t, "100.00")
		f.pay(t, inv.ID, "10.00")
		_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, active.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("issued invoice discounted to zero", func(t *testing.T) {
		inv := f.issued(t, "100.00")
		full := f.program(t, ProgramInput{DiscountPercentage: money("100"), IsActive: true})
		_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, f.actor, inv.ID, full.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assertMoney(t, "105.00", f.reload(t, inv.ID).TotalAmount)
	})

	t.Run("other tenant", func(t *testing.T) {
		inv := f.draft(t, "100.00")
		_, err := f.ledger.Discounts.ApplyDiscount(f.ctx, Actor{TenantID: "t2"}, inv.ID, active.ID, nil)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestProgramAdministration(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Discounts.CreateProgram(f.ctx, f.actor, ProgramInput{Name: "Bad", Type: models.DiscountCustom, DiscountPercentage: money("120")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.ledger.Discounts.CreateProgram(f.ctx, f.actor, ProgramInput{Name: "Bad", Type: "Coupon", DiscountPercentage: money("10")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	saada := f.program(t, ProgramInput{Name: "Saada", Type: models.DiscountSaada, DiscountPercentage: money("15"), IsActive: true, Currency: strPtr("aed")})
	assert.Equal(t, "AED", *saada.Currency)
	f.program(t, ProgramInput{Name: "Archived", DiscountPercentage: money("5")})

	updated, err := f.ledger.Discounts.UpdateProgram(f.ctx, f.actor, saada.ID, ProgramPatch{DiscountPercentage: moneyPtr("12.5")})
	require.NoError(t, err)
	assertMoney(t, "12.50", updated.DiscountPercentage)
	assert.True(t, updated.IsActive)

	all, total, err := f.ledger.Discounts.ListPrograms(f.ctx, f.actor, false, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "Archived", all[0].Name)

	active, total, err := f.ledger.Discounts.ListPrograms(f.ctx, f.actor, true, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Saada", active[0].Name)

	err = f.ledger.Discounts.DeleteProgram(f.ctx, Actor{TenantID: "t2"}, saada.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, f.ledger.Discounts.DeleteProgram(f.ctx, f.actor, saada.ID))
	_, err = f.ledger.Discounts.GetProgram(f.ctx, f.actor, saada.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
