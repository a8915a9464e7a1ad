package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/database"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// PaymentService records client payments and refunds against invoices.
// Every operation touching an invoice locks the invoice row first, then the payment row.
type PaymentService struct {
	*base
}

// RecordPaymentInput describes money received for an invoice.
type RecordPaymentInput struct {
	Amount          decimal.Decimal
	Currency        string // defaults to the invoice currency
	Method          models.PaymentMethod
	ReferenceNumber *string
	PaymentDate     *datatypes.Date
	GatewayProvider *string
	CashierName     *string
	Notes           *string

	// Pending records a payment awaiting confirmation (e.g. an online gateway);
	// it does not count towards paidAmount until confirmed.
	Pending bool

	// IdempotencyKey makes a retried request return the payment it already created.
	IdempotencyKey *string
}

// RefundInput describes a refund of a completed payment. A nil Amount refunds
// everything not yet refunded.
type RefundInput struct {
	Amount *decimal.Decimal
	Reason string
}

// PaymentFilter narrows List.
type PaymentFilter struct {
	InvoiceID *uint
	ClientID  *uint
	Status    *models.PaymentStatus
	Method    *models.PaymentMethod
	From      *datatypes.Date
	To        *datatypes.Date
}

func (f PaymentFilter) scope(db *gorm.DB) *gorm.DB {
	if f.InvoiceID != nil {
		db = db.Where("invoice_id = ?", *f.InvoiceID)
	}
	if f.ClientID != nil {
		db = db.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Method != nil {
		db = db.Where("method = ?", *f.Method)
	}
	if f.From != nil {
		db = db.Where("payment_date >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("payment_date <= ?", *f.To)
	}
	return db
}

func checkAmount(op, what string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Validation(op, "%s must be greater than zero", what)
	}
	if !utils.IsMoney(amount) {
		return apperrors.Validation(op, "%s has more than 2 decimal places", what)
	}
	return nil
}

func checkMethod(op string, method models.PaymentMethod, reference *string) error {
	if !method.Valid() {
		return apperrors.Validation(op, "unknown payment method %q", method)
	}
	if method.RequiresReference() && (reference == nil || strings.TrimSpace(*reference) == "") {
		return apperrors.Validation(op, "reference number is required for %s payments", method)
	}
	return nil
}

// Record applies a payment to an invoice. A completed payment raises paidAmount and
// moves the invoice to PartiallyPaid or Paid; a payment that would exceed the total
// is rejected with an overpayment error.
func (s *PaymentService) Record(ctx context.Context, actor Actor, invoiceID uint, in RecordPaymentInput) (*models.Payment, error) {
	const op = "payment.record"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if err := checkAmount(op, "payment amount", in.Amount); err != nil {
		return nil, err
	}
	if err := checkMethod(op, in.Method, in.ReferenceNumber); err != nil {
		return nil, err
	}
	var currency string
	if strings.TrimSpace(in.Currency) != "" {
		var err error
		if currency, err = utils.NormalizeCurrency(in.Currency); err != nil {
			return nil, apperrors.Validation(op, "%v", err)
		}
	}
	paymentDate := s.today()
	if in.PaymentDate != nil {
		paymentDate = *in.PaymentDate
	}

	var payment *models.Payment
	replayed := false
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, op, actor.TenantID, invoiceID)
		if err != nil {
			return err
		}

		if in.IdempotencyKey != nil {
			var prior models.Payment
			err := tx.Scopes(database.ForTenant(actor.TenantID)).Where("idempotency_key = ?", *in.IdempotencyKey).First(&prior).Error
			if err == nil {
				if prior.InvoiceID != invoiceID || !prior.Amount.Equal(in.Amount) {
					return apperrors.Conflict(op, "idempotency key was already used for a different payment")
				}
				payment, replayed = &prior, true
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if inv.Type == models.InvoiceTypeCreditNote {
			return apperrors.InvalidState(op, "credit notes cannot receive payments")
		}
		if !inv.Status.Payable() {
			return apperrors.InvalidState(op, "invoice %s is %s and cannot receive payments", inv.Label(), inv.Status)
		}
		if currency == "" {
			currency = inv.Currency
		}
		if currency != inv.Currency {
			return apperrors.Validation(op, "payment currency %s does not match invoice currency %s", currency, inv.Currency)
		}

		status := models.PaymentCompleted
		if in.Pending {
			status = models.PaymentPending
		} else if err := checkOverpayment(op, inv, in.Amount); err != nil {
			return err
		}

		number, err := database.NextFormatted(tx, actor.TenantID, database.SeqPayment)
		if err != nil {
			return err
		}
		payment = &models.Payment{
			TenantID:        actor.TenantID,
			InvoiceID:       inv.ID,
			ClientID:        inv.ClientID,
			PaymentNumber:   number,
			Amount:          in.Amount,
			RefundedAmount:  decimal.Zero,
			Currency:        currency,
			Method:          in.Method,
			ReferenceNumber: in.ReferenceNumber,
			PaymentDate:     paymentDate,
			GatewayProvider: in.GatewayProvider,
			CashierName:     in.CashierName,
			Status:          status,
			Notes:           in.Notes,
			IdempotencyKey:  in.IdempotencyKey,
			CreatedBy:       actor.audit(),
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		if status != models.PaymentCompleted {
			return nil
		}
		return s.applyToInvoice(tx, op, inv, in.Amount, "payment", actor)
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		s.log.Info().Str("tenant", actor.TenantID).Uint("invoice_id", invoiceID).Str("payment", payment.PaymentNumber).
			Str("amount", utils.FormatMoney(payment.Amount)).Str("status", payment.Status.String()).Msg("payment recorded")
	}
	return payment, nil
}

func checkOverpayment(op string, inv *models.Invoice, amount decimal.Decimal) error {
	if inv.PaidAmount.Add(amount).GreaterThan(inv.TotalAmount) {
		return apperrors.Overpayment(op, "payment of %s exceeds balance due %s on invoice %s",
			utils.FormatMoney(amount), utils.FormatMoney(inv.TotalAmount.Sub(inv.PaidAmount)), inv.Label())
	}
	return nil
}

// applyToInvoice adds delta (negative for refunds) to paidAmount and moves the
// invoice to the status the new figure implies. inv must be locked.
func (s *PaymentService) applyToInvoice(tx *gorm.DB, op string, inv *models.Invoice, delta decimal.Decimal, kind string, actor Actor) error {
	inv.PaidAmount = inv.PaidAmount.Add(delta)
	if inv.PaidAmount.IsNegative() || inv.PaidAmount.GreaterThan(inv.TotalAmount) {
		return apperrors.Conflict(op, "paid amount %s out of range for invoice %s", utils.FormatMoney(inv.PaidAmount), inv.Label())
	}
	today := s.today()
	if err := moveInvoice(op, inv, derivedStatus(inv, today), causePayment, today); err != nil {
		return err
	}
	if err := saveInvoice(tx, inv); err != nil {
		return err
	}
	return appendVersion(tx, inv, kind, actor)
}

// lockPayment reads a payment FOR UPDATE.
func lockPayment(tx *gorm.DB, op, tenantID string, id uint) (*models.Payment, error) {
	var p models.Payment
	err := tx.Scopes(database.ForTenant(tenantID), database.ForUpdate).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(op, "payment %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// lockPaymentAndInvoice locks the payment's invoice, then the payment itself.
func lockPaymentAndInvoice(tx *gorm.DB, op, tenantID string, id uint) (*models.Payment, *models.Invoice, error) {
	var ref models.Payment
	err := tx.Scopes(database.ForTenant(tenantID)).Select("id", "invoice_id").First(&ref, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.NotFound(op, "payment %d not found", id)
	}
	if err != nil {
		return nil, nil, err
	}
	inv, err := lockInvoice(tx, op, tenantID, ref.InvoiceID)
	if err != nil {
		return nil, nil, err
	}
	p, err := lockPayment(tx, op, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	return p, inv, nil
}

func updatePayment(tx *gorm.DB, p *models.Payment, fields map[string]any) error {
	return tx.Model(&models.Payment{}).Where("id = ? AND tenant_id = ?", p.ID, p.TenantID).Updates(fields).Error
}

// Confirm completes a Pending payment and applies it to its invoice.
func (s *PaymentService) Confirm(ctx context.Context, actor Actor, id uint) (*models.Payment, error) {
	const op = "payment.confirm"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var p *models.Payment
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var (
			inv *models.Invoice
			err error
		)
		if p, inv, err = lockPaymentAndInvoice(tx, op, actor.TenantID, id); err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(models.PaymentCompleted) {
			return apperrors.InvalidTransition(op, p.Status, models.PaymentCompleted)
		}
		if !inv.Status.Payable() {
			return apperrors.InvalidState(op, "invoice %s is %s and cannot receive payments", inv.Label(), inv.Status)
		}
		if err := checkOverpayment(op, inv, p.Amount); err != nil {
			return err
		}
		p.Status = models.PaymentCompleted
		if err := updatePayment(tx, p, map[string]any{"status": p.Status}); err != nil {
			return err
		}
		return s.applyToInvoice(tx, op, inv, p.Amount, "payment", actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("payment", p.PaymentNumber).Msg("payment confirmed")
	return p, nil
}

// Fail marks a Pending payment as Failed.
func (s *PaymentService) Fail(ctx context.Context, actor Actor, id uint, reason *string) (*models.Payment, error) {
	return s.closePending(ctx, actor, "payment.fail", id, models.PaymentFailed, reason)
}

// Cancel marks a Pending payment as Cancelled.
func (s *PaymentService) Cancel(ctx context.Context, actor Actor, id uint, reason *string) (*models.Payment, error) {
	return s.closePending(ctx, actor, "payment.cancel", id, models.PaymentCancelled, reason)
}

func (s *PaymentService) closePending(ctx context.Context, actor Actor, op string, id uint, target models.PaymentStatus, reason *string) (*models.Payment, error) {
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var p *models.Payment
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var err error
		if p, err = lockPayment(tx, op, actor.TenantID, id); err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(target) {
			return apperrors.InvalidTransition(op, p.Status, target)
		}
		p.Status = target
		p.StatusReason = reason
		return updatePayment(tx, p, map[string]any{"status": p.Status, "status_reason": p.StatusReason})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Refund returns money from a completed payment. It stores a Refunded payment row
// linked to the original, lowers the invoice's paidAmount and moves the invoice:
// a fully refunded Paid invoice becomes Refunded, a partial refund leaves it PartiallyPaid.
// A fully refunded original is marked Refunded unless a closed report already counted it.
func (s *PaymentService) Refund(ctx context.Context, actor Actor, paymentID uint, in RefundInput) (*models.Payment, error) {
	const op = "payment.refund"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperrors.Validation(op, "refund reason is required")
	}
	if in.Amount != nil {
		if err := checkAmount(op, "refund amount", *in.Amount); err != nil {
			return nil, err
		}
	}

	var refund *models.Payment
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		orig, inv, err := lockPaymentAndInvoice(tx, op, actor.TenantID, paymentID)
		if err != nil {
			return err
		}
		if orig.RefundOfPaymentID != nil {
			return apperrors.InvalidState(op, "payment %s is itself a refund", orig.PaymentNumber)
		}
		if orig.Status != models.PaymentCompleted {
			return apperrors.InvalidState(op, "only completed payments can be refunded, payment %s is %s", orig.PaymentNumber, orig.Status)
		}
		refundable := orig.Refundable()
		if !refundable.IsPositive() {
			return apperrors.InvalidState(op, "payment %s is already fully refunded", orig.PaymentNumber)
		}
		amount := refundable
		if in.Amount != nil {
			amount = *in.Amount
		}
		if amount.GreaterThan(refundable) {
			return apperrors.Validation(op, "refund amount %s exceeds refundable amount %s", utils.FormatMoney(amount), utils.FormatMoney(refundable))
		}

		number, err := database.NextFormatted(tx, actor.TenantID, database.SeqRefund)
		if err != nil {
			return err
		}
		origID := orig.ID
		refund = &models.Payment{
			TenantID:          actor.TenantID,
			InvoiceID:         orig.InvoiceID,
			ClientID:          orig.ClientID,
			PaymentNumber:     number,
			Amount:            amount,
			RefundedAmount:    decimal.Zero,
			Currency:          orig.Currency,
			Method:            orig.Method,
			ReferenceNumber:   orig.ReferenceNumber,
			PaymentDate:       s.today(),
			Status:            models.PaymentRefunded,
			StatusReason:      &reason,
			RefundOfPaymentID: &origID,
			CreatedBy:         actor.audit(),
		}
		if err := tx.Create(refund).Error; err != nil {
			return err
		}

		frozen, err := inClosedReport(tx, orig)
		if err != nil {
			return err
		}
		orig.RefundedAmount = orig.RefundedAmount.Add(amount)
		fields := map[string]any{"refunded_amount": orig.RefundedAmount}
		if orig.RefundedAmount.Equal(orig.Amount) && !frozen {
			orig.Status = models.PaymentRefunded
			fields["status"] = orig.Status
			fields["status_reason"] = &reason
		}
		if err := updatePayment(tx, orig, fields); err != nil {
			return err
		}
		return s.applyToInvoice(tx, op, inv, amount.Neg(), "refund", actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("refund", refund.PaymentNumber).Uint("payment_id", paymentID).
		Str("amount", utils.FormatMoney(refund.Amount)).Msg("payment refunded")
	return refund, nil
}

// inClosedReport reports whether p was counted by a closed X-Report. Such payments
// keep their status; refunds against them only raise refunded_amount.
func inClosedReport(tx *gorm.DB, p *models.Payment) (bool, error) {
	if p.CashReportID == nil {
		return false, nil
	}
	var n int64
	err := tx.Model(&models.CashReconciliationReport{}).
		Where("id = ? AND is_closed = ?", *p.CashReportID, true).Count(&n).Error
	return n > 0, err
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, actor Actor, id uint) (*models.Payment, error) {
	const op = "payment.get"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var p models.Payment
	err := s.read(ctx, op, func(db *gorm.DB) error {
		err := db.Scopes(database.ForTenant(actor.TenantID)).First(&p, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(op, "payment %d not found", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns a page of payments, newest first.
func (s *PaymentService) List(ctx context.Context, actor Actor, filter PaymentFilter, page Page) ([]models.Payment, int64, error) {
	const op = "payment.list"
	if err := actor.check(op); err != nil {
		return nil, 0, err
	}
	page = page.normalize()
	var (
		payments []models.Payment
		total    int64
	)
	err := s.read(ctx, op, func(db *gorm.DB) error {
		q := db.Model(&models.Payment{}).Scopes(database.ForTenant(actor.TenantID), filter.scope).Session(&gorm.Session{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("id DESC").Scopes(database.Paginate(page.Limit, page.Offset)).Find(&payments).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
