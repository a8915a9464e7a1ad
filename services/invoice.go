package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/database"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// InvoiceService owns the invoice lifecycle.
type InvoiceService struct {
	*base
}

// CreateInvoiceInput describes a new draft invoice.
type CreateInvoiceInput struct {
	ContractID    uint
	ClientID      uint // optional, must match the contract when set
	WorkerID      *uint
	Type          models.InvoiceType
	MilestoneType *string
	IssueDate     *datatypes.Date
	DueDate       *datatypes.Date
	Currency      string
	VATRate       decimal.Decimal
	Items         []LineItemInput
	TenantTRN     *string
	ClientTRN     *string
	Notes         *string
}

// UpdateDraftInput replaces the given fields of a draft. Nil fields are kept;
// a non-nil Items replaces every line item.
type UpdateDraftInput struct {
	IssueDate     *datatypes.Date
	DueDate       *datatypes.Date
	Currency      *string
	VATRate       *decimal.Decimal
	MilestoneType *string
	TenantTRN     *string
	ClientTRN     *string
	Notes         *string
	Items         []LineItemInput
}

// InvoiceFilter narrows List and Summary.
type InvoiceFilter struct {
	Status     *models.InvoiceStatus
	Type       *models.InvoiceType
	ClientID   *uint
	ContractID *uint
	From       *datatypes.Date // issue date, inclusive
	To         *datatypes.Date // issue date, inclusive
}

func (f InvoiceFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
	}
	if f.ClientID != nil {
		db = db.Where("client_id = ?", *f.ClientID)
	}
	if f.ContractID != nil {
		db = db.Where("contract_id = ?", *f.ContractID)
	}
	if f.From != nil {
		db = db.Where("issue_date >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("issue_date <= ?", *f.To)
	}
	return db
}

// Create validates the contract and line items and stores a Draft invoice.
func (s *InvoiceService) Create(ctx context.Context, actor Actor, in CreateInvoiceInput) (*models.Invoice, error) {
	const op = "invoice.create"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = models.InvoiceTypeStandard
	}
	if in.Type != models.InvoiceTypeStandard && in.Type != models.InvoiceTypeProformaDeposit {
		return nil, apperrors.Validation(op, "invoice type must be Standard or ProformaDeposit")
	}
	currency, err := utils.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, apperrors.Validation(op, "%v", err)
	}
	if err := checkVATRate(op, in.VATRate); err != nil {
		return nil, err
	}
	lines, subtotal, err := buildLines(op, in.Items)
	if err != nil {
		return nil, err
	}
	issueDate := s.today()
	if in.IssueDate != nil {
		issueDate = *in.IssueDate
	}
	dueDate := issueDate
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}
	if utils.DateBefore(dueDate, issueDate) {
		return nil, apperrors.Validation(op, "due date must not be before issue date")
	}

	contract, err := s.contracts.GetContract(ctx, actor.TenantID, in.ContractID)
	if err != nil {
		return nil, err
	}
	if in.ClientID != 0 && in.ClientID != contract.ClientID {
		return nil, apperrors.Validation(op, "client %d does not match contract %d", in.ClientID, contract.ID)
	}
	workerID := in.WorkerID
	if workerID == nil {
		workerID = contract.WorkerID
	}

	inv := &models.Invoice{
		TenantID:      actor.TenantID,
		ContractID:    contract.ID,
		ClientID:      contract.ClientID,
		WorkerID:      workerID,
		Type:          in.Type,
		Status:        models.InvoiceDraft,
		MilestoneType: in.MilestoneType,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Currency:      currency,
		Items:         lines,
		Subtotal:      subtotal,
		VATRate:       in.VATRate,
		PaidAmount:    decimal.Zero,
		TenantTRN:     in.TenantTRN,
		ClientTRN:     in.ClientTRN,
		Notes:         in.Notes,
		CreatedBy:     actor.audit(),
	}
	recalculate(inv)

	err = s.write(ctx, op, func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		return appendVersion(tx, inv, "created", actor)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Get returns an invoice with its line items.
func (s *InvoiceService) Get(ctx context.Context, actor Actor, id uint) (*models.Invoice, error) {
	const op = "invoice.get"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var inv models.Invoice
	err := s.read(ctx, op, func(db *gorm.DB) error {
		err := db.Scopes(database.ForTenant(actor.TenantID)).
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_number") }).
			First(&inv, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invoiceNotFound(op, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// List returns a page of invoices, newest first, and the total match count.
func (s *InvoiceService) List(ctx context.Context, actor Actor, filter InvoiceFilter, page Page) ([]models.Invoice, int64, error) {
	const op = "invoice.list"
	if err := actor.check(op); err != nil {
		return nil, 0, err
	}
	page = page.normalize()
	var (
		invoices []models.Invoice
		total    int64
	)
	err := s.read(ctx, op, func(db *gorm.DB) error {
		q := db.Model(&models.Invoice{}).Scopes(database.ForTenant(actor.TenantID), filter.scope).Session(&gorm.Session{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("id DESC").Scopes(database.Paginate(page.Limit, page.Offset)).Find(&invoices).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// InvoiceSummary aggregates receivables. Credit notes count negative.
type InvoiceSummary struct {
	Count       int64           `json:"count"`
	Invoiced    decimal.Decimal `json:"invoiced"`
	Credited    decimal.Decimal `json:"credited"`
	Net         decimal.Decimal `json:"net"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// Summary totals every issued (non-Draft, non-Cancelled) document matching filter.
func (s *InvoiceService) Summary(ctx context.Context, actor Actor, filter InvoiceFilter) (*InvoiceSummary, error) {
	const op = "invoice.summary"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	type row struct {
		Type  models.InvoiceType
		Count int64
		Total decimal.Decimal
		Paid  decimal.Decimal
	}
	var rows []row
	err := s.read(ctx, op, func(db *gorm.DB) error {
		return db.Model(&models.Invoice{}).
			Scopes(database.ForTenant(actor.TenantID), filter.scope).
			Where("status NOT IN ?", []models.InvoiceStatus{models.InvoiceDraft, models.InvoiceCancelled}).
			Select("type, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total, COALESCE(SUM(paid_amount), 0) AS paid").
			Group("type").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	sum := &InvoiceSummary{}
	for _, r := range rows {
		sum.Count += r.Count
		signed := (&models.Invoice{Type: r.Type, TotalAmount: utils.Round(r.Total)}).SignedTotal()
		if signed.IsNegative() {
			sum.Credited = sum.Credited.Add(signed.Neg())
		} else {
			sum.Invoiced = sum.Invoiced.Add(signed)
		}
		sum.Paid = sum.Paid.Add(utils.Round(r.Paid))
	}
	sum.Net = sum.Invoiced.Sub(sum.Credited)
	sum.Outstanding = sum.Net.Sub(sum.Paid)
	return sum, nil
}

// UpdateDraft edits a Draft invoice. Issued invoices are frozen.
func (s *InvoiceService) UpdateDraft(ctx context.Context, actor Actor, id uint, in UpdateDraftInput) (*models.Invoice, error) {
	const op = "invoice.update"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var lines []models.InvoiceLineItem
	var subtotal decimal.Decimal
	if in.Items != nil {
		var err error
		if lines, subtotal, err = buildLines(op, in.Items); err != nil {
			return nil, err
		}
	}
	if in.VATRate != nil {
		if err := checkVATRate(op, *in.VATRate); err != nil {
			return nil, err
		}
	}
	var currency string
	if in.Currency != nil {
		var err error
		if currency, err = utils.NormalizeCurrency(*in.Currency); err != nil {
			return nil, apperrors.Validation(op, "%v", err)
		}
	}

	var inv *models.Invoice
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var err error
		if inv, err = lockInvoice(tx, op, actor.TenantID, id); err != nil {
			return err
		}
		if inv.Status != models.InvoiceDraft {
			return apperrors.Conflict(op, "invoice %s is %s; only drafts can be edited", inv.Label(), inv.Status)
		}
		if in.IssueDate != nil {
			inv.IssueDate = *in.IssueDate
		}
		if in.DueDate != nil {
			inv.DueDate = *in.DueDate
		}
		if utils.DateBefore(inv.DueDate, inv.IssueDate) {
			return apperrors.Validation(op, "due date must not be before issue date")
		}
		if in.Currency != nil {
			inv.Currency = currency
		}
		if in.VATRate != nil {
			inv.VATRate = *in.VATRate
		}
		if in.MilestoneType != nil {
			inv.MilestoneType = in.MilestoneType
		}
		if in.TenantTRN != nil {
			inv.TenantTRN = in.TenantTRN
		}
		if in.ClientTRN != nil {
			inv.ClientTRN = in.ClientTRN
		}
		if in.Notes != nil {
			inv.Notes = in.Notes
		}
		if in.Items != nil {
			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLineItem{}).Error; err != nil {
				return err
			}
			for i := range lines {
				lines[i].InvoiceID = inv.ID
			}
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
			inv.Subtotal = subtotal
			inv.Items = lines
		}
		recalculate(inv)
		if err := saveInvoice(tx, inv); err != nil {
			return err
		}
		return appendVersion(tx, inv, "updated", actor)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Issue moves a Draft to Issued, freezing its line items and assigning its number.
func (s *InvoiceService) Issue(ctx context.Context, actor Actor, id uint) (*models.Invoice, error) {
	const op = "invoice.issue"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var inv *models.Invoice
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var err error
		if inv, err = lockInvoice(tx, op, actor.TenantID, id); err != nil {
			return err
		}
		return s.issueLocked(tx, op, inv, actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("invoice", inv.Label()).Str("total", utils.FormatMoney(inv.TotalAmount)).Msg("invoice issued")
	return inv, nil
}

func (s *InvoiceService) issueLocked(tx *gorm.DB, op string, inv *models.Invoice, actor Actor) error {
	if inv.Status != models.InvoiceDraft {
		return apperrors.InvalidTransition(op, inv.Status, models.InvoiceIssued)
	}
	var lines int64
	if err := tx.Model(&models.InvoiceLineItem{}).Where("invoice_id = ?", inv.ID).Count(&lines).Error; err != nil {
		return err
	}
	if lines == 0 {
		return apperrors.Validation(op, "cannot issue invoice: must have at least one line item")
	}
	if err := moveInvoice(op, inv, models.InvoiceIssued, causeManual, s.today()); err != nil {
		return err
	}
	seq := database.SeqInvoice
	if inv.Type == models.InvoiceTypeProformaDeposit {
		seq = database.SeqProforma
	}
	number, err := database.NextFormatted(tx, inv.TenantID, seq)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	inv.InvoiceNumber = &number
	inv.IssuedAt = &now
	if err := saveInvoice(tx, inv); err != nil {
		return err
	}
	return appendVersion(tx, inv, "issued", actor)
}

// TransitionStatus applies a user-requested status change. Moving a Draft to
// Issued is the same as Issue.
func (s *InvoiceService) TransitionStatus(ctx context.Context, actor Actor, id uint, target models.InvoiceStatus, reason *string) (*models.Invoice, error) {
	const op = "invoice.transition"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, apperrors.Validation(op, "unknown invoice status %q", target)
	}
	var inv *models.Invoice
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var err error
		if inv, err = lockInvoice(tx, op, actor.TenantID, id); err != nil {
			return err
		}
		if target == models.InvoiceIssued && inv.Status == models.InvoiceDraft {
			return s.issueLocked(tx, op, inv, actor)
		}
		if err := moveInvoice(op, inv, target, causeManual, s.today()); err != nil {
			return err
		}
		inv.StatusReason = reason
		if err := saveInvoice(tx, inv); err != nil {
			return err
		}
		return appendVersion(tx, inv, "status:"+target.String(), actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Uint("invoice_id", id).Str("status", inv.Status.String()).Msg("invoice status changed")
	return inv, nil
}

// Delete removes a Draft invoice with its line items and history.
func (s *InvoiceService) Delete(ctx context.Context, actor Actor, id uint) error {
	const op = "invoice.delete"
	if err := actor.check(op); err != nil {
		return err
	}
	return s.write(ctx, op, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, op, actor.TenantID, id)
		if err != nil {
			return err
		}
		if inv.Status != models.InvoiceDraft {
			return apperrors.InvalidState(op, "only draft invoices can be deleted, invoice %s is %s", inv.Label(), inv.Status)
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceVersion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Invoice{}, inv.ID).Error
	})
}

// Versions lists the audit snapshots of an invoice, oldest first.
func (s *InvoiceService) Versions(ctx context.Context, actor Actor, id uint) ([]models.InvoiceVersion, error) {
	const op = "invoice.versions"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var versions []models.InvoiceVersion
	err := s.read(ctx, op, func(db *gorm.DB) error {
		var n int64
		if err := db.Model(&models.Invoice{}).Scopes(database.ForTenant(actor.TenantID)).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return invoiceNotFound(op, id)
		}
		return db.Scopes(database.ForTenant(actor.TenantID)).Where("invoice_id = ?", id).Order("version_no").Find(&versions).Error
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// MarkOverdue moves Issued and PartiallyPaid invoices whose due date is before asOf
// and that still have a balance to Overdue. An empty tenantID sweeps every tenant.
func (s *InvoiceService) MarkOverdue(ctx context.Context, tenantID string, asOf datatypes.Date) (int, error) {
	const op = "invoice.mark_overdue"
	type candidate struct {
		ID       uint
		TenantID string
	}
	var candidates []candidate
	err := s.read(ctx, op, func(db *gorm.DB) error {
		q := db.Model(&models.Invoice{}).
			Where("status IN ?", []models.InvoiceStatus{models.InvoiceIssued, models.InvoicePartiallyPaid}).
			Where("due_date < ?", asOf)
		if tenantID != "" {
			q = q.Scopes(database.ForTenant(tenantID))
		}
		return q.Order("id").Select("id, tenant_id").Scan(&candidates).Error
	})
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return moved, apperrors.Transient(op, err)
		}
		system := Actor{TenantID: c.TenantID, UserID: "system", Name: "overdue-sweep"}
		changed := false
		err := s.write(ctx, op, func(tx *gorm.DB) error {
			inv, err := lockInvoice(tx, op, c.TenantID, c.ID)
			if err != nil {
				return err
			}
			if moveInvoice(op, inv, models.InvoiceOverdue, causeManual, asOf) != nil {
				return nil
			}
			if err := saveInvoice(tx, inv); err != nil {
				return err
			}
			changed = true
			return appendVersion(tx, inv, "status:Overdue", system)
		})
		if err != nil {
			s.log.Warn().Err(err).Uint("invoice_id", c.ID).Msg("overdue sweep skipped invoice")
			continue
		}
		if changed {
			moved++
		}
	}
	if moved > 0 {
		s.log.Info().Int("count", moved).Str("as_of", utils.FormatDate(asOf)).Msg("invoices marked overdue")
	}
	return moved, nil
}

func invoiceNotFound(op string, id uint) error {
	return apperrors.NotFound(op, "invoice %d not found", id)
}

// lockInvoice reads an invoice FOR UPDATE inside tx.
func lockInvoice(tx *gorm.DB, op, tenantID string, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := tx.Scopes(database.ForTenant(tenantID), database.ForUpdate).First(&inv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invoiceNotFound(op, id)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// saveInvoice writes the mutable invoice columns, guarded by lock_version.
func saveInvoice(tx *gorm.DB, inv *models.Invoice) error {
	if err := checkTotals(inv); err != nil {
		return err
	}
	res := tx.Model(&models.Invoice{}).
		Where("id = ? AND tenant_id = ? AND lock_version = ?", inv.ID, inv.TenantID, inv.LockVersion).
		Updates(map[string]any{
			"invoice_number":       inv.InvoiceNumber,
			"status":               inv.Status,
			"status_reason":        inv.StatusReason,
			"milestone_type":       inv.MilestoneType,
			"issue_date":           inv.IssueDate,
			"due_date":             inv.DueDate,
			"currency":             inv.Currency,
			"subtotal":             inv.Subtotal,
			"discount_amount":      inv.DiscountAmount,
			"discount_program_id":  inv.DiscountProgramID,
			"discount_percentage":  inv.DiscountPercentage,
			"discount_cap":         inv.DiscountCap,
			"discount_card_number": inv.DiscountCardNumber,
			"taxable_amount":       inv.TaxableAmount,
			"vat_rate":             inv.VATRate,
			"vat_amount":           inv.VATAmount,
			"total_amount":         inv.TotalAmount,
			"paid_amount":          inv.PaidAmount,
			"tenant_trn":           inv.TenantTRN,
			"client_trn":           inv.ClientTRN,
			"notes":                inv.Notes,
			"issued_at":            inv.IssuedAt,
			"lock_version":         inv.LockVersion + 1,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("invoice.save", "invoice %d was modified concurrently", inv.ID)
	}
	inv.LockVersion++
	inv.RefreshBalance()
	return nil
}

// appendVersion records an audit snapshot of inv. The caller holds the invoice lock.
func appendVersion(tx *gorm.DB, inv *models.Invoice, kind string, actor Actor) error {
	if inv.Items == nil {
		if err := tx.Where("invoice_id = ?", inv.ID).Order("line_number").Find(&inv.Items).Error; err != nil {
			return err
		}
	}
	var last int
	if err := tx.Model(&models.InvoiceVersion{}).Where("invoice_id = ?", inv.ID).
		Select("COALESCE(MAX(version_no), 0)").Scan(&last).Error; err != nil {
		return err
	}
	snapshot, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return tx.Create(&models.InvoiceVersion{
		TenantID:  inv.TenantID,
		InvoiceID: inv.ID,
		VersionNo: last + 1,
		Kind:      kind,
		Snapshot:  datatypes.JSON(snapshot),
		CreatedBy: actor.audit(),
	}).Error
}
