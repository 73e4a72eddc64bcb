package server

import (
	"context"
	"errors"
	"fmt"
)

// ForwardingError is a failure to reach an origin or relay its response:
// connection refused, timeouts, DNS failures or a broken upstream stream.
type ForwardingError struct {
	Origin string
	Method string
	Path   string
	Err    error
}

func (e *ForwardingError) Error() string {
	return fmt.Sprintf("forwarding %s %s to %s: %v", e.Method, e.Path, e.Origin, e.Err)
}

func (e *ForwardingError) Unwrap() error {
	return e.Err
}

// ClientGone reports whether the request was abandoned by the client rather
// than failed by the origin.
func (e *ForwardingError) ClientGone() bool {
	return errors.Is(e.Err, context.Canceled)
}
