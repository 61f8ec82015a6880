package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateIdentifier is returned when a ticket identifier is already taken in its tenant.
	ErrDuplicateIdentifier = errors.New("ticket identifier already exists")
	// ErrStaleTicket is returned when an update carries an outdated version.
	ErrStaleTicket = errors.New("ticket was modified concurrently")
	// ErrDuplicateEmail is returned when an agent email is already registered.
	ErrDuplicateEmail = errors.New("agent email already registered")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
