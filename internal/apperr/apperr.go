// Package apperr defines the error taxonomy shared by every layer.
// Errors carry a Kind so that recoverable and fatal paths are distinguished
// structurally instead of by matching message strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the platform taxonomy.
type Kind int

const (
	// KindInternal is the zero value: an unexpected failure with no
	// recovery strategy beyond the process-wide boundary.
	KindInternal Kind = iota
	// KindTransient marks retryable network failures. Surfaced as a
	// dismissible condition; never tears down the subscription registry.
	KindTransient
	// KindAuthExpired triggers identity re-resolution, not a crash.
	KindAuthExpired
	// KindNotFound renders an empty state, not an error state.
	KindNotFound
	// KindValidation is a local field-level rejection before commit.
	KindValidation
	// KindPaymentGateway is a gateway call failure; local subscription
	// status stays unchanged until the gateway confirms.
	KindPaymentGateway
	// KindPartialWrite marks a multi-step mutation that failed after some
	// records committed, possibly leaving orphaned data.
	KindPartialWrite
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuthExpired:
		return "auth_expired"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindPaymentGateway:
		return "payment_gateway"
	case KindPartialWrite:
		return "partial_write"
	default:
		return "internal"
	}
}

// Error is a kind-tagged error. CommittedIDs is populated only for
// partial-write failures and lists the records that made it to the backend
// before the failure, so callers can clean up or retry.
type Error struct {
	Kind         Kind
	Op           string // Operation that failed, e.g. "expander.AssignWorkoutTemplate"
	Msg          string // Optional human-readable detail
	Err          error  // Wrapped cause
	CommittedIDs []string
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind: apperr.Is(err, &apperr.Error{Kind: k}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a kind-tagged error with a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap tags an underlying error with a kind and operation.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// PartialWrite builds a partial-write error carrying the committed IDs.
func PartialWrite(op string, err error, committed []string) *Error {
	return &Error{Kind: KindPartialWrite, Op: op, Err: err, CommittedIDs: committed}
}

// KindOf extracts the kind from an error chain. Unknown errors classify as
// internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
