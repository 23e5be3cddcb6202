// Package postgres implements the domain repository interfaces over a
// pgx connection pool.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hearth-app/backend/internal/domain"
)

const queryTimeout = 5 * time.Second

// mapError folds driver errors into the closed domain error set so that
// callers never match on SQLSTATE codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violations.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
		}
		return err
	}

	// Anything else at this layer is a transport/availability failure.
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
