package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	crerr "github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isConnectivityError reports failures where the server was never reached or
// the session was lost, so the transaction cannot have committed.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03", pqErr.Code == "53300":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// classifyError maps a failure that happened before COMMIT. The transaction is
// rolled back, so nothing changed server side.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isInterrupted(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if isConnectivityError(err) {
		return crerr.Wrapf(roster.ErrConnectivityFailure, "%s: %v", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// classifyCommitError maps a failure of COMMIT itself. The server may or may
// not have applied the transaction.
func classifyCommitError(op string, err error) error {
	if err == nil {
		return nil
	}
	return crerr.Wrapf(roster.ErrPartialWriteFailure, "%s: %v", op, err)
}
