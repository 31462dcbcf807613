// ABOUTME: Classification of backend failures into the store error taxonomy
// ABOUTME: Timeouts, busy databases and dropped connections become ErrUnavailable

package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// transientMarkers are driver messages that indicate the storage could not
// serve the request right now.
var transientMarkers = []string{
	"database is locked",
	"sqlite_busy",
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"too many connections",
	"server closed the connection",
}

// isTransient reports whether err means the store was unreachable or timed out.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// isConstraintViolation checks if the error is a UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "duplicate key")
}

// wrapErr annotates err with the operation, marking transient failures as
// ErrUnavailable while keeping the cause matchable.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// checkContext fails fast when ctx is already done
func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return wrapErr(op, err)
	}
	return nil
}
