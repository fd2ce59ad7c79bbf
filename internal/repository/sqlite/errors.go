package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"msgtree/internal/domain"
)

// isUniqueError checks for a UNIQUE or PRIMARY KEY constraint violation
func isUniqueError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyError checks for a FOREIGN KEY constraint violation
func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// storeErr wraps a driver failure as domain.StoreError, passing context errors through
func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewStoreError(op, err)
}
