package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"ledger-backend/middlewares"
	"ledger-backend/models"
	"ledger-backend/services"
)

type recordPaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"omitempty,len=3"`
	Method          string          `json:"method" validate:"required,payment_method"`
	ReferenceNumber *string         `json:"reference_number" validate:"omitempty,max=128"`
	PaymentDate     *string         `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	GatewayProvider *string         `json:"gateway_provider" validate:"omitempty,max=64"`
	CashierName     *string         `json:"cashier_name" validate:"omitempty,max=128"`
	Notes           *string         `json:"notes"`
	Pending         bool            `json:"pending"`
	IdempotencyKey  *string         `json:"idempotency_key" validate:"omitempty,max=128"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason" validate:"required,max=500"`
}

type reasonRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// CreatePayment records a payment against an invoice.
func (h *Handler) CreatePayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req recordPaymentRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	paymentDate, err := optDate(req.PaymentDate, "payment_date")
	if err != nil {
		return err
	}
	p, err := h.ledger.Payments.Record(c.UserContext(), actor(c), id, services.RecordPaymentInput{
		Amount:          req.Amount,
		Currency:        req.Currency,
		Method:          models.PaymentMethod(req.Method),
		ReferenceNumber: req.ReferenceNumber,
		PaymentDate:     paymentDate,
		GatewayProvider: req.GatewayProvider,
		CashierName:     req.CashierName,
		Notes:           req.Notes,
		Pending:         req.Pending,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// GetInvoicePayments lists the payments and refunds of one invoice.
func (h *Handler) GetInvoicePayments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.ledger.Invoices.Get(c.UserContext(), actor(c), id); err != nil {
		return err
	}
	p := page(c)
	payments, total, err := h.ledger.Payments.List(c.UserContext(), actor(c), services.PaymentFilter{InvoiceID: &id}, p)
	if err != nil {
		return err
	}
	return c.JSON(list("payments", payments, total, p))
}

// GetPayments lists payments across invoices.
func (h *Handler) GetPayments(c *fiber.Ctx) error {
	var (
		f   services.PaymentFilter
		err error
	)
	if f.InvoiceID, err = queryUint(c, "invoice_id"); err != nil {
		return err
	}
	if f.ClientID, err = queryUint(c, "client_id"); err != nil {
		return err
	}
	if s := c.Query("status"); s != "" {
		status := models.PaymentStatus(s)
		if !status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		f.Status = &status
	}
	if m := c.Query("method"); m != "" {
		method := models.PaymentMethod(m)
		if !method.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid method")
		}
		f.Method = &method
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	p := page(c)
	payments, total, err := h.ledger.Payments.List(c.UserContext(), actor(c), f, p)
	if err != nil {
		return err
	}
	return c.JSON(list("payments", payments, total, p))
}

// GetPayment returns one payment.
func (h *Handler) GetPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.ledger.Payments.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// RefundPayment refunds all or part of a completed payment.
func (h *Handler) RefundPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req refundRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	refund, err := h.ledger.Payments.Refund(c.UserContext(), actor(c), id, services.RefundInput{Amount: req.Amount, Reason: req.Reason})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(refund)
}

// ConfirmPayment completes a pending payment.
func (h *Handler) ConfirmPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.ledger.Payments.Confirm(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// FailPayment marks a pending payment as failed.
func (h *Handler) FailPayment(c *fiber.Ctx) error {
	return h.closePending(c, h.ledger.Payments.Fail)
}

// CancelPayment cancels a pending payment.
func (h *Handler) CancelPayment(c *fiber.Ctx) error {
	return h.closePending(c, h.ledger.Payments.Cancel)
}

func (h *Handler) closePending(c *fiber.Ctx, fn func(context.Context, services.Actor, uint, *string) (*models.Payment, error)) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req reasonRequest
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}
	}
	p, err := fn(c.UserContext(), actor(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(p)
}
