package download

import (
	"errors"
	"hash"
	"time"
)

// Option defines optional settings for downloading files.
type Option func(*options) error

type options struct {
	checksum         *checksumVerifier
	progress         bool
	progressInterval time.Duration
	perm             *uint32
}

// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

// WithProgress enables download progress logging via the logger
// supplied to Handle, at most once per second.
func WithProgress() Option {
	return WithProgressInterval(time.Second)
}

// WithProgressInterval is WithProgress with a custom logging interval.
func WithProgressInterval(d time.Duration) Option {
	return func(opts *options) error {
		if d <= 0 {
			return errors.New("progress interval must be positive")
		}
		opts.progress = true
		opts.progressInterval = d
		return nil
	}
}

// WithPermissions sets the mode of the created file. Default is 0o644.
func WithPermissions(perm uint32) Option {
	return func(opts *options) error {
		if perm&^0o777 != 0 {
			return errors.New("permissions must only contain mode bits")
		}
		opts.perm = &perm
		return nil
	}
}
