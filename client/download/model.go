package download

import (
	"errors"
	"fmt"
)

var (
	// ErrFile marks failures creating or writing the destination file.
	ErrFile = errors.New("download file")
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = errors.New("content length mismatch")
	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrDownloadCancelled indicates the download was cancelled via context.
	ErrDownloadCancelled = errors.New("download cancelled")
)

// Error wraps a sentinel error with additional detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReadError wraps a failure reading the response body, as opposed to
// writing the destination file.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "reading body: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
