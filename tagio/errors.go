package tagio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a failed write for status reporting.
type ErrorCode int

const (
	CodeUnsupported ErrorCode = iota + 100
	CodeCapacityExceeded
	CodeWriteFailed
)

func (c ErrorCode) String() string {
	switch c {
	case CodeUnsupported:
		return "unsupported"
	case CodeCapacityExceeded:
		return "too_long"
	case CodeWriteFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error is returned by Writer.Write. Compare with errors.Is against the
// sentinels below.
type Error struct {
	Code    ErrorCode
	Op      string // connect, format, write
	UID     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.UID != "" {
		sb.WriteString(" (tag ")
		sb.WriteString(e.UID)
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrUnsupported       = &Error{Code: CodeUnsupported, Message: "tag does not support NDEF"}
	ErrCapacityExceeded  = &Error{Code: CodeCapacityExceeded, Message: "message too long for tag"}
	ErrWriteFailed       = &Error{Code: CodeWriteFailed, Message: "write failed"}
	errReadOnly          = errors.New("tag is read-only")
	errNotConnected      = errors.New("tag not connected")
	errCapabilityMissing = errors.New("capability container not present")
)

// CodeOf returns the code carried by err, or 0 if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

func newUnsupportedError(uid string) *Error {
	return &Error{
		Code:    CodeUnsupported,
		UID:     uid,
		Message: "tag does not support NDEF",
	}
}

func newCapacityError(uid string, size, limit int) *Error {
	return &Error{
		Code:    CodeCapacityExceeded,
		Op:      "write",
		UID:     uid,
		Message: fmt.Sprintf("message of %d bytes exceeds capacity of %d", size, limit),
	}
}

func newWriteError(op, uid string, cause error) *Error {
	return &Error{
		Code:    CodeWriteFailed,
		Op:      op,
		UID:     uid,
		Message: "write failed",
		Cause:   cause,
	}
}
