// Package errors defines the error kinds produced by the storage engine
// core (see spec §7). An Error keeps an optional cause (set by Io and
// Wrap) and exposes it through Unwrap, so callers can still
// errors.Is/errors.As through to it.
package errors

import "fmt"

// Kind identifies which of the engine's error categories a Error carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindKeyNotFound
	KindNotPresent
	KindEndOfFile
	KindCorruptPage
	KindAlreadyManaged
	KindIo
	KindTransactionClosed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindKeyNotFound:
		return "KeyNotFound"
	case KindNotPresent:
		return "NotPresent"
	case KindEndOfFile:
		return "EndOfFile"
	case KindCorruptPage:
		return "CorruptPage"
	case KindAlreadyManaged:
		return "AlreadyManaged"
	case KindIo:
		return "Io"
	case KindTransactionClosed:
		return "TransactionClosed"
	default:
		return "Unknown"
	}
}

// Error is the engine's uniform error type, grounded on the teacher's
// refactor_code/pkg/errors.DatabaseError{Code, Message, Cause} shape.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, cause error) error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

func InvalidArgument(msg string) error           { return newErr(KindInvalidArgument, msg, nil) }
func KeyNotFound(msg string) error               { return newErr(KindKeyNotFound, msg, nil) }
func NotPresent(msg string) error                { return newErr(KindNotPresent, msg, nil) }
func EndOfFile(msg string) error                 { return newErr(KindEndOfFile, msg, nil) }
func CorruptPage(msg string) error               { return newErr(KindCorruptPage, msg, nil) }
func AlreadyManaged(msg string) error            { return newErr(KindAlreadyManaged, msg, nil) }
func Io(msg string, cause error) error           { return newErr(KindIo, msg, cause) }
func TransactionClosed(msg string) error         { return newErr(KindTransactionClosed, msg, nil) }
func Wrap(k Kind, msg string, cause error) error { return newErr(k, msg, cause) }

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
