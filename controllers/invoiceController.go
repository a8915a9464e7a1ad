package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"ledger-backend/middlewares"
	"ledger-backend/models"
	"ledger-backend/services"
)

type lineItemRequest struct {
	Description    string          `json:"description" validate:"required,max=500"`
	DescriptionAr  *string         `json:"description_ar" validate:"omitempty,max=500"`
	ItemCode       *string         `json:"item_code" validate:"omitempty,max=64"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

func (r lineItemRequest) input() services.LineItemInput {
	return services.LineItemInput{
		Description:    r.Description,
		DescriptionAr:  r.DescriptionAr,
		ItemCode:       r.ItemCode,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice,
		DiscountAmount: r.DiscountAmount,
	}
}

func lineInputs(items []lineItemRequest) []services.LineItemInput {
	if items == nil {
		return nil
	}
	out := make([]services.LineItemInput, len(items))
	for i, it := range items {
		out[i] = it.input()
	}
	return out
}

type createInvoiceRequest struct {
	ContractID    uint              `json:"contract_id" validate:"required"`
	ClientID      uint              `json:"client_id"`
	WorkerID      *uint             `json:"worker_id"`
	Type          string            `json:"type" validate:"omitempty,oneof=Standard ProformaDeposit"`
	MilestoneType *string           `json:"milestone_type" validate:"omitempty,max=50"`
	IssueDate     *string           `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate       *string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Currency      string            `json:"currency" validate:"required,len=3"`
	VATRate       decimal.Decimal   `json:"vat_rate"`
	Items         []lineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	TenantTRN     *string           `json:"tenant_trn" validate:"omitempty,max=32"`
	ClientTRN     *string           `json:"client_trn" validate:"omitempty,max=32"`
	Notes         *string           `json:"notes"`
}

type updateInvoiceRequest struct {
	IssueDate     *string           `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate       *string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Currency      *string           `json:"currency" validate:"omitempty,len=3"`
	VATRate       *decimal.Decimal  `json:"vat_rate"`
	MilestoneType *string           `json:"milestone_type" validate:"omitempty,max=50"`
	TenantTRN     *string           `json:"tenant_trn" validate:"omitempty,max=32"`
	ClientTRN     *string           `json:"client_trn" validate:"omitempty,max=32"`
	Notes         *string           `json:"notes"`
	Items         []lineItemRequest `json:"line_items" validate:"omitempty,dive"`
}

type transitionRequest struct {
	Status string  `json:"status" validate:"required,invoice_status"`
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type discountRequest struct {
	ProgramID  uint    `json:"program_id" validate:"required"`
	CardNumber *string `json:"card_number" validate:"omitempty,max=64"`
}

type creditNoteRequest struct {
	Reason string           `json:"reason" validate:"required,max=500"`
	Amount *decimal.Decimal `json:"amount"`
}

// CreateInvoice stores a new Draft invoice.
func (h *Handler) CreateInvoice(c *fiber.Ctx) error {
	var req createInvoiceRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	issueDate, err := optDate(req.IssueDate, "issue_date")
	if err != nil {
		return err
	}
	dueDate, err := optDate(req.DueDate, "due_date")
	if err != nil {
		return err
	}
	inv, err := h.ledger.Invoices.Create(c.UserContext(), actor(c), services.CreateInvoiceInput{
		ContractID:    req.ContractID,
		ClientID:      req.ClientID,
		WorkerID:      req.WorkerID,
		Type:          models.InvoiceType(req.Type),
		MilestoneType: req.MilestoneType,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Currency:      req.Currency,
		VATRate:       req.VATRate,
		Items:         lineInputs(req.Items),
		TenantTRN:     req.TenantTRN,
		ClientTRN:     req.ClientTRN,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}

func invoiceFilter(c *fiber.Ctx) (services.InvoiceFilter, error) {
	var f services.InvoiceFilter
	if s := c.Query("status"); s != "" {
		status := models.InvoiceStatus(s)
		if !status.Valid() {
			return f, fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		f.Status = &status
	}
	if t := c.Query("type"); t != "" {
		typ := models.InvoiceType(t)
		if !typ.Valid() {
			return f, fiber.NewError(fiber.StatusBadRequest, "invalid type")
		}
		f.Type = &typ
	}
	var err error
	if f.ClientID, err = queryUint(c, "client_id"); err != nil {
		return f, err
	}
	if f.ContractID, err = queryUint(c, "contract_id"); err != nil {
		return f, err
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return f, err
	}
	return f, nil
}

// GetInvoices lists invoices with optional filters.
func (h *Handler) GetInvoices(c *fiber.Ctx) error {
	filter, err := invoiceFilter(c)
	if err != nil {
		return err
	}
	p := page(c)
	invoices, total, err := h.ledger.Invoices.List(c.UserContext(), actor(c), filter, p)
	if err != nil {
		return err
	}
	return c.JSON(list("invoices", invoices, total, p))
}

// GetInvoiceSummary totals receivables for the filtered invoices.
func (h *Handler) GetInvoiceSummary(c *fiber.Ctx) error {
	filter, err := invoiceFilter(c)
	if err != nil {
		return err
	}
	sum, err := h.ledger.Invoices.Summary(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

// GetInvoice returns one invoice with its line items.
func (h *Handler) GetInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.ledger.Invoices.Get(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// UpdateInvoice edits a Draft invoice.
func (h *Handler) UpdateInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req updateInvoiceRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	issueDate, err := optDate(req.IssueDate, "issue_date")
	if err != nil {
		return err
	}
	dueDate, err := optDate(req.DueDate, "due_date")
	if err != nil {
		return err
	}
	inv, err := h.ledger.Invoices.UpdateDraft(c.UserContext(), actor(c), id, services.UpdateDraftInput{
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Currency:      req.Currency,
		VATRate:       req.VATRate,
		MilestoneType: req.MilestoneType,
		TenantTRN:     req.TenantTRN,
		ClientTRN:     req.ClientTRN,
		Notes:         req.Notes,
		Items:         lineInputs(req.Items),
	})
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// DeleteInvoice removes a Draft invoice.
func (h *Handler) DeleteInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.ledger.Invoices.Delete(c.UserContext(), actor(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

// IssueInvoice freezes a Draft and assigns its number.
func (h *Handler) IssueInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.ledger.Invoices.Issue(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// TransitionInvoice applies a manual status change.
func (h *Handler) TransitionInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	inv, err := h.ledger.Invoices.TransitionStatus(c.UserContext(), actor(c), id, models.InvoiceStatus(req.Status), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// ApplyDiscount applies a discount program to an invoice.
func (h *Handler) ApplyDiscount(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req discountRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	inv, err := h.ledger.Discounts.ApplyDiscount(c.UserContext(), actor(c), id, req.ProgramID, req.CardNumber)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// CreateCreditNote raises a full or partial credit note against an invoice.
func (h *Handler) CreateCreditNote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req creditNoteRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	note, err := h.ledger.CreditNotes.Create(c.UserContext(), actor(c), id, services.CreditNoteInput{Reason: req.Reason, Amount: req.Amount})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

// GetCreditNotes lists the credit notes of an invoice.
func (h *Handler) GetCreditNotes(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	notes, err := h.ledger.CreditNotes.ListForInvoice(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"credit_notes": notes, "message": "success"})
}

// GetInvoiceVersions returns the audit snapshots of an invoice.
func (h *Handler) GetInvoiceVersions(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	versions, err := h.ledger.Invoices.Versions(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"versions": versions, "message": "success"})
}

// GetInvoicePDF renders an issued invoice. Without a renderer the document data is returned as JSON.
func (h *Handler) GetInvoicePDF(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	doc, err := h.ledger.Invoices.Document(c.UserContext(), actor(c), id)
	if err != nil {
		return err
	}
	if h.renderer == nil || !h.renderer.Enabled() {
		return c.JSON(doc)
	}
	pdf, err := h.renderer.Render(doc)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+doc.Number+`.pdf"`)
	c.Type("pdf")
	return c.Send(pdf)
}
