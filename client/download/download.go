package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// Handle streams body into a newly created file at destPath. The file
// must not already exist. On any error after creation the partial file
// is removed.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return fmt.Errorf("applying option: %w", err)
		}
	}

	if destPath == "" {
		return fmt.Errorf("%w: destination path must not be empty", ErrFile)
	}

	perm := fs.FileMode(0o644)
	if opts.perm != nil {
		perm = fs.FileMode(*opts.perm)
	}

	file, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("%w: creating file: %w", ErrFile, err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing download file", "error", err)
		}
		if !successful {
			if err := os.Remove(destPath); err != nil {
				logger.Error("failed to remove partial download", "path", destPath, "error", err)
			}
		}
	}()

	body = &contextReader{ctx: ctx, r: body}

	var writer io.Writer = file
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	if opts.progress {
		writer = &progressWriter{
			w:         writer,
			logger:    logger,
			path:      destPath,
			interval:  opts.progressInterval,
			total:     contentLength,
			startTime: time.Now(),
		}
	}

	n, err := io.Copy(writer, body)
	if err != nil {
		var rerr *ReadError
		switch {
		case errors.Is(err, context.Canceled):
			return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		case errors.As(err, &rerr):
			return rerr
		default:
			return fmt.Errorf("%w: writing file: %w", ErrFile, err)
		}
	}

	if contentLength >= 0 && n != contentLength {
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing file: %w", ErrFile, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: closing file: %w", ErrFile, err)
	}

	successful = true

	return nil
}

// contextReader stops a copy once ctx is done and tags read failures
// so they can be told apart from write failures.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, &ReadError{Err: err}
	}

	n, err := cr.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &ReadError{Err: err}
	}

	return n, err
}
