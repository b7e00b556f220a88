// ABOUTME: Error taxonomy for store actions
// ABOUTME: Separates local validation, local not-found, and transport/server failures
package store

import (
	"errors"
	"fmt"

	"github.com/harperreed/salesdesk/api"
	"github.com/harperreed/salesdesk/models"
)

var (
	// ErrMissingScope is models.ErrMissingScope, re-exported for callers that
	// only import store.
	ErrMissingScope   = models.ErrMissingScope
	ErrInvalidQuery   = errors.New("invalid query")
	ErrNotFoundLocal  = errors.New("not found, may already be deleted")
	ErrEmptySelection = errors.New("select at least one")
)

type Kind int

const (
	// KindValidation is a local failure raised before any network call.
	KindValidation Kind = iota
	// KindNotFound means the target is absent from the held collection.
	KindNotFound
	// KindTransport means the transport or server rejected the call.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error is returned by mutations and recorded in State for reads.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindTransport for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransport
}

func validationError(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: localMessage(err), Err: err}
}

func notFoundError(op, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Op:      op,
		Message: fmt.Sprintf("%s %s", id, ErrNotFoundLocal.Error()),
		Err:     ErrNotFoundLocal,
	}
}

func transportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: api.Message(err), Err: err}
}

// localMessage strips the sentinel prefix so "missing required scoping
// field: companyId is required" reads as "companyId is required".
func localMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrMissingScope, ErrInvalidQuery} {
		prefix := sentinel.Error() + ": "
		if errors.Is(err, sentinel) && len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
