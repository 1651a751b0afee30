package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedScheme    = errors.New("unsupported signaling scheme")
	ErrUnexpectedStatus     = errors.New("unexpected status")
	ErrMalformedDescription = errors.New("malformed description")
	ErrRemote               = errors.New("remote error")
	ErrRateLimited          = errors.New("too many offers")
)

// ExchangeError describes a failed step of an offer/answer exchange.
type ExchangeError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *ExchangeError {
	return &ExchangeError{Op: op, Err: err}
}
