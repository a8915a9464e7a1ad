package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ledger-backend/controllers"
	"ledger-backend/middlewares"
)

// Deps are what the routes need beyond the handlers.
type Deps struct {
	DB        *gorm.DB
	JWTSecret []byte
	Logger    zerolog.Logger
}

// Register wires all HTTP routes.
func Register(app *fiber.App, h *controllers.Handler, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader(deps.JWTSecret))

	// Idempotency guard replays stored responses for retried requests
	protected.Use(middlewares.Idempotency(deps.DB, deps.Logger))

	// Invoices
	protected.Post("/invoices", h.CreateInvoice)
	protected.Get("/invoices", h.GetInvoices)
	protected.Get("/invoices/summary", h.GetInvoiceSummary)
	protected.Get("/invoices/:id", h.GetInvoice)
	protected.Put("/invoices/:id", h.UpdateInvoice)
	protected.Delete("/invoices/:id", h.DeleteInvoice)
	protected.Put("/invoices/:id/issue", h.IssueInvoice)
	protected.Put("/invoices/:id/status", h.TransitionInvoice)
	protected.Put("/invoices/:id/discount", h.ApplyDiscount)
	protected.Post("/invoices/:id/credit-notes", h.CreateCreditNote)
	protected.Get("/invoices/:id/credit-notes", h.GetCreditNotes)
	protected.Get("/invoices/:id/versions", h.GetInvoiceVersions)
	protected.Get("/invoices/:id/pdf", h.GetInvoicePDF)
	protected.Post("/invoices/:id/payments", h.CreatePayment)
	protected.Get("/invoices/:id/payments", h.GetInvoicePayments)

	// Payments
	protected.Get("/payments", h.GetPayments)
	protected.Get("/payments/:id", h.GetPayment)
	protected.Post("/payments/:id/refund", h.RefundPayment)
	protected.Put("/payments/:id/confirm", h.ConfirmPayment)
	protected.Put("/payments/:id/fail", h.FailPayment)
	protected.Put("/payments/:id/cancel", h.CancelPayment)

	// Supplier payments
	protected.Post("/supplier-payments", h.CreateSupplierPayment)
	protected.Get("/supplier-payments", h.GetSupplierPayments)
	protected.Get("/supplier-payments/:id", h.GetSupplierPayment)
	protected.Put("/supplier-payments/:id/status", h.TransitionSupplierPayment)

	// Discount programs
	protected.Post("/discount-programs", h.CreateDiscountProgram)
	protected.Get("/discount-programs", h.GetDiscountPrograms)
	protected.Get("/discount-programs/:id", h.GetDiscountProgram)
	protected.Put("/discount-programs/:id", h.UpdateDiscountProgram)
	protected.Delete("/discount-programs/:id", h.DeleteDiscountProgram)

	// Cash reconciliation (X-Report)
	protected.Post("/cash-reports", h.GenerateCashReport)
	protected.Get("/cash-reports", h.GetCashReports)
	protected.Get("/cash-reports/:id", h.GetCashReport)
	protected.Put("/cash-reports/:id/close", h.CloseCashReport)
	protected.Delete("/cash-reports/:id", h.DiscardCashReport)
}
