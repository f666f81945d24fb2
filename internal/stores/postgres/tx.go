package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Zack-y11/e-commerce/internal/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

// WithTx runs fn inside a transaction, rolling back when fn fails.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("failed to begin tx", err)
	}

	if err := fn(tx); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", errors.Join(err, er))
		}
		return fmt.Errorf("failed to execute withTx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Storage("failed to commit tx", err)
	}
	return nil
}

// Classify turns a driver error into an apperr kind. entity names the row
// being touched and ends up in the client-facing message.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity + " not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, entity+" already exists", err)
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindConflict, entity+" conflicts with related records", err)
		case codeCheckViolation:
			return apperr.Wrap(apperr.KindInvalidInput, "invalid "+entity, err)
		case codeInvalidText:
			return apperr.Wrap(apperr.KindInvalidInput, "invalid "+entity+" identifier", err)
		}
	}
	return apperr.Storage("failed to access "+entity, err)
}

// Read retries fn a few times with backoff while it keeps failing with a
// storage failure. Any other outcome is returned right away.
func Read(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(3, retry.NewExponential(25*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if apperr.KindOf(err) == apperr.KindStorageFailure {
			return retry.RetryableError(err)
		}
		return err
	})
}
