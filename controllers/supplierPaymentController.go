package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"ledger-backend/middlewares"
	"ledger-backend/models"
	"ledger-backend/services"
)

type supplierPaymentRequest struct {
	SupplierID      uint            `json:"supplier_id" validate:"required"`
	WorkerID        *uint           `json:"worker_id"`
	ContractID      *uint           `json:"contract_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	Method          string          `json:"method" validate:"required,payment_method"`
	ReferenceNumber *string         `json:"reference_number" validate:"omitempty,max=128"`
	PaymentDate     *string         `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	Notes           *string         `json:"notes"`
}

type supplierStatusRequest struct {
	Status string  `json:"status" validate:"required,supplier_status"`
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// CreateSupplierPayment records a Pending outbound payment.
func (h *Handler) CreateSupplierPayment(c *fiber.Ctx) error {
	var req supplierPaymentRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	paymentDate, err := optDate(req.PaymentDate, "payment_date")
	if err != nil {
		return err
	}
	sp, err := h.ledger.SupplierPayments.Create(c.UserContext(), actor(c), services.SupplierPaymentInput{
		SupplierID:      req.SupplierID,
		WorkerID:        req.WorkerID,
		ContractID:      req.ContractID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Method:          models.PaymentMethod(req.Method),
		ReferenceNumber: req.ReferenceNumber,
		PaymentDate:     paymentDate,
		Notes:           req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sp)
}

// GetSupplierPayments lists supplier payments.
func (h *Handler) GetSupplierPayments(c *fiber.Ctx) error {
	var (
		f   services.SupplierPaymentFilter
		err error
	)
	if f.SupplierID, err = queryUint(c, "supplier_id"); err != nil {
		return err
	}
	if s := c.Query("status"); s != "" {
		status := models.SupplierPaymentStatus(s)
		if !status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		f.Status = &status
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	p := page(c)
	rows, total, err := h.ledger.SupplierPayments.List(c.UserContext(), actor(c), f, p)
	if err != nil {
		return err
	}
	return c.JSON(list("supplier_payments", rows, total, p))
}

// GetSupplierPayment returns one supplier payment.
func (h *Handler) GetSupplierPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	sp, err := h.ledger.SupplierPayments.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(sp)
}

// TransitionSupplierPayment changes a supplier payment's status.
func (h *Handler) TransitionSupplierPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req supplierStatusRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	sp, err := h.ledger.SupplierPayments.TransitionStatus(c.UserContext(), actor(c), id, models.SupplierPaymentStatus(req.Status), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(sp)
}
