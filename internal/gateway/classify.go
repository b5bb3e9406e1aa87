package gateway

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Class tags a remote-store failure so callers can branch on structure
// instead of error text.
type Class int

const (
	ClassOther Class = iota
	ClassTableMissing
	ClassColumnMissing
	ClassAuthFailure
)

func (c Class) String() string {
	switch c {
	case ClassTableMissing:
		return "table_missing"
	case ClassColumnMissing:
		return "column_missing"
	case ClassAuthFailure:
		return "auth_failure"
	default:
		return "other"
	}
}

// Postgres SQLSTATE codes the taxonomy is built on.
const (
	codeUndefinedTable    = "42P01"
	codeUndefinedColumn   = "42703"
	codeInvalidPassword   = "28P01"
	codeInvalidAuthSpec   = "28000"
	codeInsufficientPrivs = "42501"
)

// Classify maps a provider error to its taxonomy class. Structured
// SQLSTATE codes are preferred; the textual markers exist only for
// providers that wrap errors into plain strings, and this function is
// the single place allowed to sniff message text.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedTable:
			return ClassTableMissing
		case codeUndefinedColumn:
			return ClassColumnMissing
		case codeInvalidPassword, codeInvalidAuthSpec, codeInsufficientPrivs:
			return ClassAuthFailure
		}
		return ClassOther
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "does not exist") && strings.Contains(msg, "column"):
		return ClassColumnMissing
	case strings.Contains(msg, "does not exist") && (strings.Contains(msg, "relation") || strings.Contains(msg, "table")):
		return ClassTableMissing
	case strings.Contains(msg, "could not find the table"):
		return ClassTableMissing
	case strings.Contains(msg, "jwt"),
		strings.Contains(msg, "apikey"),
		strings.Contains(msg, "api key"),
		strings.Contains(msg, "password authentication"),
		strings.Contains(msg, "permission denied"):
		return ClassAuthFailure
	}
	return ClassOther
}
