package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories react to.
const (
	codeUndefinedColumn     = "42703"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
)

// paymentIntentIndex is the unique index holding one order per payment intent.
const paymentIntentIndex = "uq_orders_payment_intent"

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func isPgCode(err error, code string) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == code
}

// isMissingPaymentColumn reports whether err is an undefined-column error
// naming one of the optional order payment columns.
func isMissingPaymentColumn(err error) bool {
	pgErr := pgError(err)
	if pgErr == nil || pgErr.Code != codeUndefinedColumn {
		return false
	}
	return strings.Contains(pgErr.Message, "payment_intent_id") ||
		strings.Contains(pgErr.Message, "payment_status")
}
