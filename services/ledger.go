// Package services implements the ledger operations: invoices, discounts, payments,
// credit notes, supplier payments and the daily cash reconciliation report.
//
// Every operation takes the caller's Actor; all reads and writes are scoped to
// Actor.TenantID. State-changing operations run in a single transaction.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ledger-backend/apperrors"
	"ledger-backend/database"
	"ledger-backend/utils"
)

// Actor is the authenticated caller: tenant plus identity for audit fields.
type Actor struct {
	TenantID string
	UserID   string
	Name     string
}

func (a Actor) check(op string) error {
	if strings.TrimSpace(a.TenantID) == "" {
		return apperrors.Validation(op, "tenant is required")
	}
	return nil
}

// audit is the identity recorded in created_by/closed_by.
func (a Actor) audit() string {
	if a.Name != "" {
		return a.Name
	}
	return a.UserID
}

// Options configures a Ledger. Zero values pick sensible defaults.
type Options struct {
	Contracts    ContractLookup
	Location     *time.Location
	Now          func() time.Time
	ReadAttempts int
	Logger       zerolog.Logger
}

// Ledger groups the ledger services over one database.
type Ledger struct {
	Invoices         *InvoiceService
	Discounts        *DiscountService
	Payments         *PaymentService
	CreditNotes      *CreditNoteService
	SupplierPayments *SupplierPaymentService
	Reports          *ReconciliationService
}

// NewLedger wires all services. Contracts defaults to the platform contracts table.
func NewLedger(db *gorm.DB, opts Options) *Ledger {
	if opts.Contracts == nil {
		opts.Contracts = NewContractStore(db)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReadAttempts < 1 {
		opts.ReadAttempts = 3
	}
	b := &base{
		db:           db,
		contracts:    opts.Contracts,
		loc:          opts.Location,
		now:          opts.Now,
		readAttempts: opts.ReadAttempts,
		log:          opts.Logger.With().Str("component", "ledger").Logger(),
	}
	return &Ledger{
		Invoices:         &InvoiceService{base: b},
		Discounts:        &DiscountService{base: b},
		Payments:         &PaymentService{base: b},
		CreditNotes:      &CreditNoteService{base: b},
		SupplierPayments: &SupplierPaymentService{base: b},
		Reports:          &ReconciliationService{base: b},
	}
}

type base struct {
	db           *gorm.DB
	contracts    ContractLookup
	loc          *time.Location
	now          func() time.Time
	readAttempts int
	log          zerolog.Logger
}

// today is the current business date.
func (b *base) today() datatypes.Date {
	return utils.DateOf(b.now().In(b.loc))
}

// read runs an idempotent query, retrying transient failures.
func (b *base) read(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return database.RetryRead(ctx, b.readAttempts, func() error {
		return database.Classify(op, fn(b.db.WithContext(ctx)))
	})
}

// write runs fn in one transaction. It is never retried.
func (b *base) write(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return database.Classify(op, b.db.WithContext(ctx).Transaction(fn))
}

// Page is a limit/offset window for list operations.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = utils.DefaultPageLimit
	}
	if p.Limit > utils.MaxPageLimit {
		p.Limit = utils.MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
