package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidArgument is returned before any I/O when request options
	// conflict or cannot be applied.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout is captured when the transport times out without the
	// caller having cancelled.
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled is captured when the caller's context or the client
	// lifetime is cancelled mid-request.
	ErrCanceled = errors.New("canceled by user")

	// ErrTransport is captured for every other transport failure, such as
	// DNS, TLS or a reset connection.
	ErrTransport = errors.New("transport failure")

	// ErrFilesystem is captured when the download target exists or cannot
	// be written.
	ErrFilesystem = errors.New("filesystem failure")

	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrAuthFailure          = errors.New("auth failure")

	// ErrClosed is the cancellation cause once [Client.Close] was called.
	ErrClosed = errors.New("client closed")
)

const (
	reasonTimedOut = "Operation timed out."
	reasonCanceled = "Canceled by user."
)

// UnexpectedStatusError describes a completed response whose status is
// outside 200-299. Body holds at most the first 4KB of the response text.
type UnexpectedStatusError struct {
	StatusCode int
	Reason     string
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("%d - %s", e.StatusCode, e.Reason)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

func newStatusError(resp *Response) *UnexpectedStatusError {
	body := resp.Text
	if len(body) > maxErrBodySize {
		body = body[:maxErrBodySize]
	}

	err := ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		err = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Reason:     resp.ReasonPhrase,
		Body:       body,
		Err:        err,
	}
}

// Error is returned for a failed response. It carries the fully
// populated Response so headers, text and timing stay inspectable.
type Error struct {
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
