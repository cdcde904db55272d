package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column from a unique violation detail: "Key (email)=(a@b) already exists.".
// Expression indexes report "Key (lower(email))=...", which the inner group unwraps.
var reKeyField = regexp.MustCompile(`Key \((?:[a-z_]+\()?([a-z_]+)\)?\)=`)

// constraintFields names the column behind each users constraint.
var constraintFields = map[string]string{
	"users_pkey":                 "id",
	"users_email_key":            "email",
	"users_email_lower_idx":      "email",
	"users_provider_subject_key": "provider_subject",
	"users_role_check":           "role",
}

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows and sql.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - check and NOT NULL violations → Validation
//   - context timeouts/cancellations → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	field := fieldFromPgError(pgErr)
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		msg := "This value already exists. Please choose a different one."
		if field == "email" {
			msg = "An account with this email already exists."
		}
		return &AppError{Code: ErrCodeConflict, Message: msg, Field: field, Cause: pgErr}
	case pgerrcode.CheckViolation:
		return &AppError{Code: ErrCodeValidation, Message: "This field has an invalid value.", Field: field, Cause: pgErr}
	case pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "This field is required.", Field: field, Cause: pgErr}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred. Please try again.", Cause: pgErr}
	}
}

// fieldFromPgError prefers column metadata, then the detail text, then the constraint name.
func fieldFromPgError(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return constraintFields[strings.ToLower(pgErr.ConstraintName)]
}
