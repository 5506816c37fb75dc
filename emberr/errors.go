package emberr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies application errors into the categories the lifecycle
// and catalog operations report to callers.
type Kind int

const (
	NotFound Kind = iota
	SourceUnavailable
	ExternalToolFailure
	ValidationFailure
	RegistryCorruption
	ConfigurationMissing
	Internal
)

// Error is an application error carrying the failed operation, the target
// it was operating on and the underlying cause.
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "lifecycle.Install"
	Target string // OS name, path or URL the operation was acting on
	Err    error  // original error
	Stderr string // captured tool output, set for ExternalToolFailure
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// String returns the kind as a string for logging.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case SourceUnavailable:
		return "source_unavailable"
	case ExternalToolFailure:
		return "external_tool_failure"
	case ValidationFailure:
		return "validation_failure"
	case RegistryCorruption:
		return "registry_corruption"
	case ConfigurationMissing:
		return "configuration_missing"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error kind to the status code the management API
// returns for it.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case SourceUnavailable:
		return http.StatusBadGateway
	case ValidationFailure:
		return http.StatusBadRequest
	case ExternalToolFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of err, or Internal when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// NewNotFound creates a NotFound error for the named target.
func NewNotFound(op, target string) *Error {
	return &Error{
		Kind:   NotFound,
		Op:     op,
		Target: target,
		Err:    fmt.Errorf("%q not found", target),
	}
}

// NewSourceUnavailable creates a SourceUnavailable error.
func NewSourceUnavailable(op, source string, err error) *Error {
	return &Error{
		Kind:   SourceUnavailable,
		Op:     op,
		Target: source,
		Err:    err,
	}
}

// NewToolFailure creates an ExternalToolFailure carrying the tool's stderr.
func NewToolFailure(op, tool string, err error, stderr string) *Error {
	return &Error{
		Kind:   ExternalToolFailure,
		Op:     op,
		Target: tool,
		Err:    err,
		Stderr: stderr,
	}
}

// NewValidationFailure creates a ValidationFailure error.
func NewValidationFailure(op string, err error) *Error {
	return &Error{
		Kind: ValidationFailure,
		Op:   op,
		Err:  err,
	}
}

// NewRegistryCorruption wraps a registry parse failure. Callers downgrade
// this to a logged warning rather than propagating it.
func NewRegistryCorruption(op string, err error) *Error {
	return &Error{
		Kind: RegistryCorruption,
		Op:   op,
		Err:  err,
	}
}

// NewConfigurationMissing wraps a missing configuration source. Callers
// substitute defaults rather than failing.
func NewConfigurationMissing(op string, err error) *Error {
	return &Error{
		Kind: ConfigurationMissing,
		Op:   op,
		Err:  err,
	}
}
