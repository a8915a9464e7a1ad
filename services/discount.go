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

// DiscountService administers discount programs and applies them to invoices.
type DiscountService struct {
	*base
}

// ProgramInput is the full definition of a discount program.
type ProgramInput struct {
	Name               string
	NameAr             *string
	Type               models.DiscountProgramType
	DiscountPercentage decimal.Decimal
	MaxDiscountAmount  *decimal.Decimal
	Currency           *string
	IsActive           bool
	ValidFrom          *datatypes.Date
	ValidTo            *datatypes.Date
}

// ProgramPatch changes the non-nil fields of a program.
type ProgramPatch struct {
	Name               *string
	NameAr             *string
	DiscountPercentage *decimal.Decimal
	MaxDiscountAmount  *decimal.Decimal
	Currency           *string
	IsActive           *bool
	ValidFrom          *datatypes.Date
	ValidTo            *datatypes.Date
}

var hundredPercent = decimal.NewFromInt(100)

func validateProgram(op string, p *models.DiscountProgram) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.Validation(op, "program name is required")
	}
	if !p.Type.Valid() {
		return apperrors.Validation(op, "unknown program type %q", p.Type)
	}
	if p.DiscountPercentage.IsNegative() || p.DiscountPercentage.GreaterThan(hundredPercent) {
		return apperrors.Validation(op, "discount percentage must be between 0 and 100")
	}
	if !utils.IsMoney(p.DiscountPercentage) {
		return apperrors.Validation(op, "discount percentage has more than 2 decimal places")
	}
	if p.MaxDiscountAmount != nil && (p.MaxDiscountAmount.IsNegative() || !utils.IsMoney(*p.MaxDiscountAmount)) {
		return apperrors.Validation(op, "max discount amount must be a non-negative amount with 2 decimals")
	}
	if p.Currency != nil {
		code, err := utils.NormalizeCurrency(*p.Currency)
		if err != nil {
			return apperrors.Validation(op, "%v", err)
		}
		p.Currency = &code
	}
	if p.ValidFrom != nil && p.ValidTo != nil && utils.DateBefore(*p.ValidTo, *p.ValidFrom) {
		return apperrors.Validation(op, "valid_to must not be before valid_from")
	}
	return nil
}

// CreateProgram stores a new discount program.
func (s *DiscountService) CreateProgram(ctx context.Context, actor Actor, in ProgramInput) (*models.DiscountProgram, error) {
	const op = "discount.create"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	p := &models.DiscountProgram{
		TenantID:           actor.TenantID,
		Name:               strings.TrimSpace(in.Name),
		NameAr:             in.NameAr,
		Type:               in.Type,
		DiscountPercentage: in.DiscountPercentage,
		MaxDiscountAmount:  in.MaxDiscountAmount,
		Currency:           in.Currency,
		IsActive:           in.IsActive,
		ValidFrom:          in.ValidFrom,
		ValidTo:            in.ValidTo,
	}
	if err := validateProgram(op, p); err != nil {
		return nil, err
	}
	if err := s.write(ctx, op, func(tx *gorm.DB) error { return tx.Create(p).Error }); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProgram applies a patch. Invoices keep the terms they were discounted with.
func (s *DiscountService) UpdateProgram(ctx context.Context, actor Actor, id uint, patch ProgramPatch) (*models.DiscountProgram, error) {
	const op = "discount.update"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var p models.DiscountProgram
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		err := tx.Scopes(database.ForTenant(actor.TenantID), database.ForUpdate).First(&p, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(op, "discount program %d not found", id)
		}
		if err != nil {
			return err
		}
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.NameAr != nil {
			p.NameAr = patch.NameAr
		}
		if patch.DiscountPercentage != nil {
			p.DiscountPercentage = *patch.DiscountPercentage
		}
		if patch.MaxDiscountAmount != nil {
			p.MaxDiscountAmount = patch.MaxDiscountAmount
		}
		if patch.Currency != nil {
			p.Currency = patch.Currency
		}
		if patch.IsActive != nil {
			p.IsActive = *patch.IsActive
		}
		if patch.ValidFrom != nil {
			p.ValidFrom = patch.ValidFrom
		}
		if patch.ValidTo != nil {
			p.ValidTo = patch.ValidTo
		}
		if err := validateProgram(op, &p); err != nil {
			return err
		}
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProgram soft-deletes a program; it can no longer be applied.
func (s *DiscountService) DeleteProgram(ctx context.Context, actor Actor, id uint) error {
	const op = "discount.delete"
	if err := actor.check(op); err != nil {
		return err
	}
	return s.write(ctx, op, func(tx *gorm.DB) error {
		res := tx.Scopes(database.ForTenant(actor.TenantID)).Delete(&models.DiscountProgram{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound(op, "discount program %d not found", id)
		}
		return nil
	})
}

// GetProgram returns one program.
func (s *DiscountService) GetProgram(ctx context.Context, actor Actor, id uint) (*models.DiscountProgram, error) {
	const op = "discount.get"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var p models.DiscountProgram
	err := s.read(ctx, op, func(db *gorm.DB) error {
		err := db.Scopes(database.ForTenant(actor.TenantID)).First(&p, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(op, "discount program %d not found", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPrograms returns a page of programs ordered by name.
func (s *DiscountService) ListPrograms(ctx context.Context, actor Actor, activeOnly bool, page Page) ([]models.DiscountProgram, int64, error) {
	const op = "discount.list"
	if err := actor.check(op); err != nil {
		return nil, 0, err
	}
	page = page.normalize()
	var (
		programs []models.DiscountProgram
		total    int64
	)
	err := s.read(ctx, op, func(db *gorm.DB) error {
		q := db.Model(&models.DiscountProgram{}).Scopes(database.ForTenant(actor.TenantID))
		if activeOnly {
			q = q.Where("is_active = ?", true)
		}
		q = q.Session(&gorm.Session{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("name, id").Scopes(database.Paginate(page.Limit, page.Offset)).Find(&programs).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return programs, total, nil
}

// ApplyDiscount applies program to an invoice, replacing any earlier discount.
// cardNumber is required for membership programs (Saada, Fazaa).
func (s *DiscountService) ApplyDiscount(ctx context.Context, actor Actor, invoiceID, programID uint, cardNumber *string) (*models.Invoice, error) {
	const op = "discount.apply"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var inv *models.Invoice
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var err error
		if inv, err = lockInvoice(tx, op, actor.TenantID, invoiceID); err != nil {
			return err
		}
		if inv.Type == models.InvoiceTypeCreditNote {
			return apperrors.InvalidState(op, "credit notes cannot be discounted")
		}
		if inv.Status != models.InvoiceDraft && inv.Status != models.InvoiceIssued {
			return apperrors.InvalidState(op, "discounts apply to Draft or Issued invoices, invoice %s is %s", inv.Label(), inv.Status)
		}

		var program models.DiscountProgram
		err = tx.Scopes(database.ForTenant(actor.TenantID)).First(&program, programID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(op, "discount program %d not found", programID)
		}
		if err != nil {
			return err
		}
		if !program.IsActive {
			return apperrors.NotFound(op, "discount program %q is not active", program.Name)
		}
		today := s.today()
		if program.ValidFrom != nil && utils.DateBefore(today, *program.ValidFrom) {
			return apperrors.Validation(op, "discount program %q starts on %s", program.Name, utils.FormatDate(*program.ValidFrom))
		}
		if program.ValidTo != nil && utils.DateBefore(*program.ValidTo, today) {
			return apperrors.Validation(op, "discount program %q ended on %s", program.Name, utils.FormatDate(*program.ValidTo))
		}
		if program.Currency != nil && *program.Currency != inv.Currency {
			return apperrors.Validation(op, "discount program %q is limited to %s, invoice is in %s", program.Name, *program.Currency, inv.Currency)
		}
		if program.Type.RequiresCard() && (cardNumber == nil || strings.TrimSpace(*cardNumber) == "") {
			return apperrors.Validation(op, "a %s card number is required", program.Type)
		}

		pct := program.DiscountPercentage
		inv.DiscountProgramID = &program.ID
		inv.DiscountPercentage = &pct
		inv.DiscountCap = program.MaxDiscountAmount
		inv.DiscountCardNumber = nil
		if cardNumber != nil && strings.TrimSpace(*cardNumber) != "" {
			card := strings.TrimSpace(*cardNumber)
			inv.DiscountCardNumber = &card
		}
		recalculate(inv)
		if inv.Status == models.InvoiceIssued && !inv.TotalAmount.IsPositive() {
			return apperrors.Validation(op, "discount would reduce an issued invoice to zero")
		}
		if err := saveInvoice(tx, inv); err != nil {
			return err
		}
		return appendVersion(tx, inv, "discount", actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("invoice", inv.Label()).Uint("program_id", programID).
		Str("discount", utils.FormatMoney(inv.DiscountAmount)).Msg("discount applied")
	return inv, nil
}
