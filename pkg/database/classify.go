package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
)

const (
	codeUniqueViolation = "23505"
	codeQueryCanceled   = "57014"
	codeAdminShutdown   = "57P01"
	codeSerialization   = "40001"
	codeDeadlock        = "40P01"
	classConnection     = "08"
)

// IsTimeout reports whether err is a server side statement timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == codeQueryCanceled
	}
	return strings.Contains(err.Error(), "statement timeout")
}

// IsConnectionLost reports whether the session itself is gone, which
// includes SSL teardown by the server.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == classConnection || string(pqErr.Code) == codeAdminShutdown
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "ssl") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "server closed the connection")
}

// IsTransient reports whether retrying err might succeed. Statement
// timeouts and pool acquisition timeouts are never transient.
func IsTransient(err error) bool {
	if err == nil || IsTimeout(err) || appErrors.IsKind(err, appErrors.ErrTimeout) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsConnectionLost(err) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == codeSerialization || code == codeDeadlock
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify maps driver errors onto the application taxonomy. Errors it does
// not recognise, sql.ErrNoRows included, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case IsTimeout(err):
		return appErrors.WrapAs(appErrors.ErrTimeout, err, "statement timed out")
	case IsUniqueViolation(err):
		return appErrors.WrapAs(appErrors.ErrAlreadyExists, err, "")
	case IsTransient(err):
		return appErrors.WrapAs(appErrors.ErrTransient, err, "")
	}
	return err
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeUniqueViolation
}
