package api

import (
	"errors"
	"fmt"
)

// Kind classifies a remote-call failure so call sites can apply the right
// policy: permission failures surface to the user and block the feature,
// transient failures are logged and treated as "no new information this
// cycle", invalid requests indicate a client bug.
type Kind int

const (
	KindTransient Kind = iota
	KindPermission
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermission:
		return "permission"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error wraps a remote-call failure with its operation and classification.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure classification; unwrapped errors count as
// transient, the safe default for enrichment calls.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransient
}

// IsTransient reports whether the error should be swallowed and logged
// rather than surfaced.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// kindForStatus maps an HTTP status to a failure classification.
func kindForStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindPermission
	case status >= 400 && status < 500:
		return KindInvalid
	default:
		return KindTransient
	}
}
