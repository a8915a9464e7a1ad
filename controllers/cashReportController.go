package controllers

import (
	"github.com/gofiber/fiber/v2"

	"ledger-backend/middlewares"
	"ledger-backend/services"
)

type generateReportRequest struct {
	ReportDate  string  `json:"report_date" validate:"omitempty,datetime=2006-01-02"`
	CashierName *string `json:"cashier_name" validate:"omitempty,max=128"`
}

// GenerateCashReport builds the X-Report for a date (default: today).
func (h *Handler) GenerateCashReport(c *fiber.Ctx) error {
	var req generateReportRequest
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}
	}
	date, err := h.ledger.Reports.ReportDate(req.ReportDate)
	if err != nil {
		return err
	}
	report, err := h.ledger.Reports.Generate(c.UserContext(), actor(c), date, req.CashierName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetCashReports lists reports, latest first.
func (h *Handler) GetCashReports(c *fiber.Ctx) error {
	var (
		f   services.ReportFilter
		err error
	)
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	if v := c.Query("closed"); v != "" {
		closed := c.QueryBool("closed")
		f.Closed = &closed
	}
	p := page(c)
	reports, total, err := h.ledger.Reports.List(c.UserContext(), actor(c), f, p)
	if err != nil {
		return err
	}
	return c.JSON(list("cash_reports", reports, total, p))
}

// GetCashReport returns one report with the payments it counted.
func (h *Handler) GetCashReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	report, err := h.ledger.Reports.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	payments, err := h.ledger.Reports.Payments(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"report": report, "payments": payments, "message": "success"})
}

// CloseCashReport makes a report immutable.
func (h *Handler) CloseCashReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	report, err := h.ledger.Reports.Close(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// DiscardCashReport deletes an open report.
func (h *Handler) DiscardCashReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.ledger.Reports.Discard(c.UserContext(), actor(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}
