package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/database"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// SupplierPaymentService tracks outbound payments to suppliers.
type SupplierPaymentService struct {
	*base
}

// SupplierPaymentInput describes a new supplier payment.
type SupplierPaymentInput struct {
	SupplierID      uint
	WorkerID        *uint
	ContractID      *uint
	Amount          decimal.Decimal
	Currency        string
	Method          models.PaymentMethod
	ReferenceNumber *string
	PaymentDate     *datatypes.Date
	Notes           *string
}

// SupplierPaymentFilter narrows List.
type SupplierPaymentFilter struct {
	SupplierID *uint
	Status     *models.SupplierPaymentStatus
	From       *datatypes.Date
	To         *datatypes.Date
}

func (f SupplierPaymentFilter) scope(db *gorm.DB) *gorm.DB {
	if f.SupplierID != nil {
		db = db.Where("supplier_id = ?", *f.SupplierID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.From != nil {
		db = db.Where("payment_date >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("payment_date <= ?", *f.To)
	}
	return db
}

// Create stores a Pending supplier payment.
func (s *SupplierPaymentService) Create(ctx context.Context, actor Actor, in SupplierPaymentInput) (*models.SupplierPayment, error) {
	const op = "supplier_payment.create"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if in.SupplierID == 0 {
		return nil, apperrors.Validation(op, "supplier is required")
	}
	if err := checkAmount(op, "payment amount", in.Amount); err != nil {
		return nil, err
	}
	if err := checkMethod(op, in.Method, in.ReferenceNumber); err != nil {
		return nil, err
	}
	currency, err := utils.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, apperrors.Validation(op, "%v", err)
	}
	paymentDate := s.today()
	if in.PaymentDate != nil {
		paymentDate = *in.PaymentDate
	}

	sp := &models.SupplierPayment{
		TenantID:        actor.TenantID,
		SupplierID:      in.SupplierID,
		WorkerID:        in.WorkerID,
		ContractID:      in.ContractID,
		Amount:          in.Amount,
		Currency:        currency,
		Method:          in.Method,
		ReferenceNumber: in.ReferenceNumber,
		PaymentDate:     paymentDate,
		Status:          models.SupplierPending,
		Notes:           in.Notes,
		CreatedBy:       actor.audit(),
	}
	err = s.write(ctx, op, func(tx *gorm.DB) error {
		number, err := database.NextFormatted(tx, actor.TenantID, database.SeqSupplierPayment)
		if err != nil {
			return err
		}
		sp.PaymentNumber = number
		return tx.Create(sp).Error
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// TransitionStatus moves a supplier payment along its transition table.
func (s *SupplierPaymentService) TransitionStatus(ctx context.Context, actor Actor, id uint, target models.SupplierPaymentStatus, reason *string) (*models.SupplierPayment, error) {
	const op = "supplier_payment.transition"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, apperrors.Validation(op, "unknown supplier payment status %q", target)
	}
	var sp models.SupplierPayment
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		err := tx.Scopes(database.ForTenant(actor.TenantID), database.ForUpdate).First(&sp, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(op, "supplier payment %d not found", id)
		}
		if err != nil {
			return err
		}
		if !sp.Status.CanTransitionTo(target) {
			return apperrors.InvalidTransition(op, sp.Status, target)
		}
		sp.Status = target
		sp.StatusReason = reason
		return tx.Model(&models.SupplierPayment{}).Where("id = ? AND tenant_id = ?", sp.ID, sp.TenantID).
			Updates(map[string]any{"status": sp.Status, "status_reason": sp.StatusReason}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("supplier_payment", sp.PaymentNumber).Str("status", sp.Status.String()).Msg("supplier payment status changed")
	return &sp, nil
}

// Get returns one supplier payment.
func (s *SupplierPaymentService) Get(ctx context.Context, actor Actor, id uint) (*models.SupplierPayment, error) {
	const op = "supplier_payment.get"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var sp models.SupplierPayment
	err := s.read(ctx, op, func(db *gorm.DB) error {
		err := db.Scopes(database.ForTenant(actor.TenantID)).First(&sp, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(op, "supplier payment %d not found", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// List returns a page of supplier payments, newest first.
func (s *SupplierPaymentService) List(ctx context.Context, actor Actor, filter SupplierPaymentFilter, page Page) ([]models.SupplierPayment, int64, error) {
	const op = "supplier_payment.list"
	if err := actor.check(op); err != nil {
		return nil, 0, err
	}
	page = page.normalize()
	var (
		rows  []models.SupplierPayment
		total int64
	)
	err := s.read(ctx, op, func(db *gorm.DB) error {
		q := db.Model(&models.SupplierPayment{}).Scopes(database.ForTenant(actor.TenantID), filter.scope).Session(&gorm.Session{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("id DESC").Scopes(database.Paginate(page.Limit, page.Offset)).Find(&rows).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
