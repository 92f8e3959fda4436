package db

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationCode is the Postgres error code for unique_violation.
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique-constraint failure on
// either supported dialect.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	// mattn/go-sqlite3 reports "UNIQUE constraint failed: ..."
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// durationSec returns the whole-second duration between start and end,
// clamped at zero.
func durationSec(start, end time.Time) int64 {
	sec := int64(end.Sub(start) / time.Second)
	if sec < 0 {
		return 0
	}
	return sec
}
