package xmlrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrResponseTooLarge is returned when the remote sends a response body
// exceeding the configured ceiling. The body is rejected outright rather
// than truncated so a misbehaving remote cannot feed us partial XML.
var ErrResponseTooLarge = errors.New("xmlrpc: response exceeds size limit")

// Fault is an explicit error response to a well-formed call. It signals a
// logic or compatibility problem on the remote, not transient
// unavailability, so callers should not retry it the way they retry
// transport failures.
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc: fault %d: %s", f.Code, f.Message)
}

// IsFault reports whether err is (or wraps) a remote fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// IsTimeout reports whether err is a call that ran out of time, either
// through the per-call budget or a caller deadline. Timeouts are handled
// identically to connection failures by every caller in this codebase.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
