package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/database"
	"ledger-backend/models"
	"ledger-backend/utils"
)

// ReconciliationService produces the daily cash reconciliation report (X-Report).
//
// A report attributes each completed payment it counts to itself, so a payment is
// summarized at most once. One report may exist per tenant and date.
type ReconciliationService struct {
	*base
}

// BreakdownLine is the per currency and method subtotal stored with a report.
type BreakdownLine struct {
	Currency string `json:"currency"`
	Method   string `json:"method"`
	Count    int    `json:"count"`
	Total    string `json:"total"`
}

// ReportFilter narrows List.
type ReportFilter struct {
	From   *datatypes.Date
	To     *datatypes.Date
	Closed *bool
}

// Generate aggregates the completed, unreported payments dated date into a new open report.
// It fails with a conflict if a report for that date already exists, open or closed.
func (s *ReconciliationService) Generate(ctx context.Context, actor Actor, date datatypes.Date, cashierName *string) (*models.CashReconciliationReport, error) {
	const op = "report.generate"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	if cashierName != nil && strings.TrimSpace(*cashierName) == "" {
		cashierName = nil
	}

	var report *models.CashReconciliationReport
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.CashReconciliationReport{}).Scopes(database.ForTenant(actor.TenantID)).
			Where("report_date = ?", date).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperrors.Conflict(op, "report already exists for date %s", utils.FormatDate(date))
		}

		q := tx.Scopes(database.ForTenant(actor.TenantID), database.ForUpdate).
			Where("status = ? AND payment_date = ? AND cash_report_id IS NULL", models.PaymentCompleted, date)
		if cashierName != nil {
			q = q.Where("cashier_name = ?", *cashierName)
		}
		var payments []models.Payment
		if err := q.Order("id").Find(&payments).Error; err != nil {
			return err
		}

		breakdown, total := summarize(payments)
		raw, err := json.Marshal(breakdown)
		if err != nil {
			return err
		}
		number, err := database.NextFormatted(tx, actor.TenantID, database.SeqCashReport)
		if err != nil {
			return err
		}
		report = &models.CashReconciliationReport{
			TenantID:         actor.TenantID,
			ReportNumber:     number,
			ReportDate:       date,
			CashierName:      cashierName,
			TransactionCount: len(payments),
			GrandTotal:       total,
			Breakdown:        datatypes.JSON(raw),
			CreatedBy:        actor.audit(),
		}
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		if len(payments) == 0 {
			return nil
		}
		ids := make([]uint, len(payments))
		for i, p := range payments {
			ids[i] = p.ID
		}
		return tx.Model(&models.Payment{}).Where("id IN ?", ids).Update("cash_report_id", report.ID).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("report", report.ReportNumber).Str("date", utils.FormatDate(date)).
		Int("transactions", report.TransactionCount).Str("total", utils.FormatMoney(report.GrandTotal)).Msg("x-report generated")
	return report, nil
}

// summarize totals payments per currency and method, in a stable order.
// The grand total adds every line regardless of currency; it is a money figure
// only when all lines share one currency, otherwise read the breakdown.
func summarize(payments []models.Payment) ([]BreakdownLine, decimal.Decimal) {
	type key struct{ currency, method string }
	totals := map[key]decimal.Decimal{}
	counts := map[key]int{}
	grand := decimal.Zero
	for _, p := range payments {
		k := key{p.Currency, p.Method.String()}
		totals[k] = totals[k].Add(p.Amount)
		counts[k]++
		grand = grand.Add(p.Amount)
	}
	lines := make([]BreakdownLine, 0, len(totals))
	for k, t := range totals {
		lines = append(lines, BreakdownLine{Currency: k.currency, Method: k.method, Count: counts[k], Total: utils.FormatMoney(t)})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Currency != lines[j].Currency {
			return lines[i].Currency < lines[j].Currency
		}
		return lines[i].Method < lines[j].Method
	})
	return lines, utils.Round(grand)
}

func lockReport(tx *gorm.DB, op, tenantID string, id uint) (*models.CashReconciliationReport, error) {
	var r models.CashReconciliationReport
	err := tx.Scopes(database.ForTenant(tenantID), database.ForUpdate).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(op, "report %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Close makes a report immutable.
func (s *ReconciliationService) Close(ctx context.Context, actor Actor, id uint) (*models.CashReconciliationReport, error) {
	const op = "report.close"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var r *models.CashReconciliationReport
	err := s.write(ctx, op, func(tx *gorm.DB) error {
		var err error
		if r, err = lockReport(tx, op, actor.TenantID, id); err != nil {
			return err
		}
		if r.IsClosed {
			return apperrors.Conflict(op, "report %s is already closed", r.ReportNumber)
		}
		now := s.now().UTC()
		by := actor.audit()
		res := tx.Model(&models.CashReconciliationReport{}).
			Where("id = ? AND tenant_id = ? AND is_closed = ?", r.ID, r.TenantID, false).
			Updates(map[string]any{"is_closed": true, "closed_at": now, "closed_by": by})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict(op, "report %s is already closed", r.ReportNumber)
		}
		r.IsClosed, r.ClosedAt, r.ClosedBy = true, &now, &by
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", actor.TenantID).Str("report", r.ReportNumber).Msg("x-report closed")
	return r, nil
}

// Discard deletes an open report and releases its payments for a new report.
func (s *ReconciliationService) Discard(ctx context.Context, actor Actor, id uint) error {
	const op = "report.discard"
	if err := actor.check(op); err != nil {
		return err
	}
	return s.write(ctx, op, func(tx *gorm.DB) error {
		r, err := lockReport(tx, op, actor.TenantID, id)
		if err != nil {
			return err
		}
		if r.IsClosed {
			return apperrors.Conflict(op, "report %s is closed and cannot be discarded", r.ReportNumber)
		}
		if err := tx.Model(&models.Payment{}).Scopes(database.ForTenant(actor.TenantID)).
			Where("cash_report_id = ?", r.ID).Update("cash_report_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.CashReconciliationReport{}, r.ID).Error
	})
}

// Get returns one report.
func (s *ReconciliationService) Get(ctx context.Context, actor Actor, id uint) (*models.CashReconciliationReport, error) {
	const op = "report.get"
	if err := actor.check(op); err != nil {
		return nil, err
	}
	var r models.CashReconciliationReport
	err := s.read(ctx, op, func(db *gorm.DB) error {
		err := db.Scopes(database.ForTenant(actor.TenantID)).First(&r, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(op, "report %d not found", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Payments lists the payments a report counted.
func (s *ReconciliationService) Payments(ctx context.Context, actor Actor, id uint) ([]models.Payment, error) {
	const op = "report.payments"
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	var payments []models.Payment
	err := s.read(ctx, op, func(db *gorm.DB) error {
		return db.Scopes(database.ForTenant(actor.TenantID)).Where("cash_report_id = ?", id).Order("id").Find(&payments).Error
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// List returns a page of reports, latest date first.
func (s *ReconciliationService) List(ctx context.Context, actor Actor, filter ReportFilter, page Page) ([]models.CashReconciliationReport, int64, error) {
	const op = "report.list"
	if err := actor.check(op); err != nil {
		return nil, 0, err
	}
	page = page.normalize()
	var (
		reports []models.CashReconciliationReport
		total   int64
	)
	err := s.read(ctx, op, func(db *gorm.DB) error {
		q := db.Model(&models.CashReconciliationReport{}).Scopes(database.ForTenant(actor.TenantID))
		if filter.From != nil {
			q = q.Where("report_date >= ?", *filter.From)
		}
		if filter.To != nil {
			q = q.Where("report_date <= ?", *filter.To)
		}
		if filter.Closed != nil {
			q = q.Where("is_closed = ?", *filter.Closed)
		}
		q = q.Session(&gorm.Session{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return q.Order("report_date DESC, id DESC").Scopes(database.Paginate(page.Limit, page.Offset)).Find(&reports).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ReportDate parses an optional YYYY-MM-DD, defaulting to today in the business timezone.
func (s *ReconciliationService) ReportDate(value string) (datatypes.Date, error) {
	if strings.TrimSpace(value) == "" {
		return s.today(), nil
	}
	d, err := utils.ParseDate(value)
	if err != nil {
		return datatypes.Date(time.Time{}), apperrors.Validation("report.date", "%v", err)
	}
	return d, nil
}
