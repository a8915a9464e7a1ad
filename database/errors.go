package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"ledger-backend/apperrors"
)

// Classify maps a storage error onto the ledger error taxonomy.
// Errors that already carry a kind pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &apperrors.Error{Kind: apperrors.KindNotFound, Op: op, Reason: "record not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &apperrors.Error{Kind: apperrors.KindConflict, Op: op, Reason: "a record with the same key already exists", Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &apperrors.Error{Kind: apperrors.KindValidation, Op: op, Reason: "referenced record does not exist", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return &apperrors.Error{Kind: apperrors.KindConflict, Op: op, Reason: "a record with the same key already exists", Err: err}
		case pgErr.Code == "23503", pgErr.Code == "23514", pgErr.Code == "22003":
			return &apperrors.Error{Kind: apperrors.KindValidation, Op: op, Reason: "value violates a ledger constraint", Err: err}
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return &apperrors.Error{Kind: apperrors.KindConflict, Op: op, Reason: "concurrent update, retry the request", Err: err}
		}
	}

	return apperrors.Transient(op, err)
}

// RetryRead runs an idempotent read up to attempts times, retrying only transient failures.
// Writes must never go through RetryRead.
func RetryRead(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 25 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if apperrors.KindOf(err) != apperrors.KindTransient || i == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
