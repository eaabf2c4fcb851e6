package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/beads-queue/orchestrator/internal/store"
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to store.ErrNotFound for consistent error handling across
// backends.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
