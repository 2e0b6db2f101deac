// Package repository implements gorm-backed persistence for users, groups, posts,
// comments and follow edges.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"penfeed/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// ErrMissingReference marks an insert whose foreign key points at a row that no longer exists.
var ErrMissingReference = errors.New("referenced row does not exist")

// isUniqueConstraintError reports a unique index violation from postgres or sqlite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// lookupError maps a failed single-row lookup to NotFound or Internal.
func lookupError(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// isForeignKeyError reports a foreign key violation from postgres or sqlite.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// insertError wraps foreign key failures in ErrMissingReference and everything else
// in an internal error.
func insertError(err error) error {
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	}
	return models.NewInternalError(err)
}
