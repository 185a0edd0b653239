// Package download streams HTTP response bodies to disk with optional
// checksum validation and progress reporting.
//
// [Handle] creates the destination file exclusively: it fails with an
// error wrapping [ErrFile] and [fs.ErrExist] when the path already
// exists, and never touches the existing contents. A partially written
// file is removed when the transfer fails.
//
//	err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// Most callers should use [github.com/adamwoolhether/httpsession/client]
// with client.WithDownload, which invokes Handle internally.
package download
