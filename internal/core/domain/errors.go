package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow RM-<AREA>-<NNNN>; the first three digits of NNNN are the
// HTTP status the error maps to, see Status.
type DomainError struct {
	Code    string
	Message string

	// Details is request specific, e.g. the owner of a client.
	Details string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a sentinel error.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy carrying details. Sentinels are never
// modified.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// Area returns the AREA segment of the code ("CLNT" for RM-CLNT-4040).
func (e *DomainError) Area() string {
	_, rest, ok := strings.Cut(e.Code, "-")
	if !ok {
		return ""
	}
	area, _, _ := strings.Cut(rest, "-")
	return area
}

// Status returns the HTTP status the error maps to: the first three digits
// of the numeric part, 400 for argument errors, 500 when the code carries
// no usable status.
func (e *DomainError) Status() int {
	if e.Area() == "ARG" {
		return 400
	}
	i := strings.LastIndexByte(e.Code, '-')
	if i < 0 || len(e.Code)-i-1 < 3 {
		return 500
	}
	status, err := strconv.Atoi(e.Code[i+1 : i+4])
	if err != nil || status < 400 || status > 599 {
		return 500
	}
	return status
}

// AsDomainError returns the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the DomainError in err's chain, or "".
func CodeOf(err error) string {
	if de, ok := AsDomainError(err); ok {
		return de.Code
	}
	return ""
}

// StatusOf returns the status of the DomainError in err's chain; other
// errors are internal.
func StatusOf(err error) int {
	if de, ok := AsDomainError(err); ok {
		return de.Status()
	}
	return 500
}

// Client registry errors.
var (
	// ErrClientNotFound indicates no client is registered under the id.
	ErrClientNotFound = NewDomainError("RM-CLNT-4040", "client not found")

	// ErrClientRemoved indicates the client was released and accepts no changes.
	ErrClientRemoved = NewDomainError("RM-CLNT-4100", "client removed")

	// ErrNotResponsible indicates this node does not own the client.
	ErrNotResponsible = NewDomainError("RM-CLNT-4090", "client not owned by this node")

	// ErrInstanceNotFound indicates the client does not publish the service.
	ErrInstanceNotFound = NewDomainError("RM-CLNT-4041", "instance not found")
)

// Replication errors.
var (
	// ErrHandlerNotFound indicates no storage, processor or agent is registered
	// for a resource type.
	ErrHandlerNotFound = NewDomainError("RM-DSTR-4040", "distro handler not found")

	// ErrDistroTransport indicates a peer request failed.
	ErrDistroTransport = NewDomainError("RM-DSTR-5020", "distro transport failed")

	// ErrDecodeFailed indicates a distro payload could not be decoded.
	ErrDecodeFailed = NewDomainError("RM-DSTR-4000", "distro data decode failed")

	// ErrMemberNotFound indicates the target is not a cluster member.
	ErrMemberNotFound = NewDomainError("RM-DSTR-4041", "member not found")

	// ErrDataNotFound indicates the queried key is not held locally.
	ErrDataNotFound = NewDomainError("RM-DSTR-4042", "distro data not found")
)

// Node and request errors.
var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("RM-SYS-5000", "internal server error")

	// ErrServiceUnavailable indicates the node is not ready to serve.
	ErrServiceUnavailable = NewDomainError("RM-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("RM-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("RM-SYS-4290", "too many requests")
)

// Argument errors. All map to 400.
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("RM-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("RM-ARG-1002", "missing required argument")
)
