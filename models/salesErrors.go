package models

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lealcafe/ventas_backend/sheets"
)

// ParseError is raised by the row parser; a header that cannot be located or an empty workbook.
type ParseError = sheets.ParseError

// ValidationError rejects one row. The orchestrator records it as a warning and skips the row.
type ValidationError struct {
	Dimension Dimension `json:"dimension"`
	Row       int       `json:"row"`
	Field     string    `json:"field,omitempty"`
	Value     string    `json:"value,omitempty"`
	Reason    string    `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s row %d: %s", e.Dimension, e.Row, e.Reason)
	}
	if e.Value == "" {
		return fmt.Sprintf("%s row %d: %s %s", e.Dimension, e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s row %d: %s %s (%q)", e.Dimension, e.Row, e.Field, e.Reason, e.Value)
}

// ConfigurationError rejects the whole upload before anything is parsed or persisted.
type ConfigurationError struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// PersistenceError aborts one dimension's batch; its transaction was rolled back.
type PersistenceError struct {
	Dimension Dimension
	Code      string // postgres SQLSTATE when available
	Reason    string
	Retryable bool
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: persist failed (sqlstate %s, %s): %v", e.Dimension, e.Code, e.Reason, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: persist failed (sqlstate %s): %v", e.Dimension, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: persist failed: %v", e.Dimension, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgNumericOverflow      = "22003"
)

func newPersistenceError(dim Dimension, err error) *PersistenceError {
	perr := &PersistenceError{Dimension: dim, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		perr.Code = pgErr.Code
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			perr.Retryable = true
		case pgUniqueViolation:
			perr.Reason = "duplicate natural key in batch"
		case pgNumericOverflow:
			perr.Reason = "amount exceeds column precision"
		}
	}
	return perr
}

// ErrorType names the taxonomy entry of err for API responses.
func ErrorType(err error) string {
	var (
		parseErr  *ParseError
		valErr    *ValidationError
		configErr *ConfigurationError
		persisErr *PersistenceError
	)
	switch {
	case errors.As(err, &configErr):
		return "ConfigurationError"
	case errors.As(err, &parseErr):
		return "ParseError"
	case errors.As(err, &valErr):
		return "ValidationError"
	case errors.As(err, &persisErr):
		return "PersistenceError"
	}
	return "InternalError"
}
