package download_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamwoolhether/httpsession/client/download"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHandle_WritesNewFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.txt")

	if err := download.Handle(t.Context(), strings.NewReader("hello"), 5, dest, discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestHandle_ExistingFileIsNotOverwritten(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "exists.txt")
	if err := os.WriteFile(dest, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := download.Handle(t.Context(), strings.NewReader("new"), 3, dest, discard)
	if !errors.Is(err, download.ErrFile) {
		t.Fatalf("expected ErrFile, got %v", err)
	}
	if !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected fs.ErrExist, got %v", err)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "original" {
		t.Errorf("existing file was modified: %q", got)
	}
}

func TestHandle_ContentLengthMismatchRemovesFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "short.txt")

	err := download.Handle(t.Context(), strings.NewReader("abc"), 10, dest, discard)
	if !errors.Is(err, download.ErrContentLengthMismatch) {
		t.Fatalf("expected ErrContentLengthMismatch, got %v", err)
	}

	if _, err := os.Stat(dest); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected partial file to be removed, stat err: %v", err)
	}
}

func TestHandle_Checksum(t *testing.T) {
	sum := sha256.Sum256([]byte("payload"))
	good := hex.EncodeToString(sum[:])

	dir := t.TempDir()
	if err := download.Handle(t.Context(), strings.NewReader("payload"), -1, filepath.Join(dir, "ok"), discard,
		download.WithChecksum(sha256.New(), good),
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := download.Handle(t.Context(), strings.NewReader("payload"), -1, filepath.Join(dir, "bad"), discard,
		download.WithChecksum(sha256.New(), strings.Repeat("0", 64)),
	)
	var dlErr *download.Error
	if !errors.As(err, &dlErr) || !errors.Is(err, download.ErrChecksumMismatch) {
		t.Fatalf("expected checksum *download.Error, got %v", err)
	}
}

func TestHandle_ReadErrorIsTagged(t *testing.T) {
	boom := errors.New("connection reset")
	dest := filepath.Join(t.TempDir(), "broken")

	err := download.Handle(t.Context(), io.MultiReader(strings.NewReader("part"), errReader{boom}), -1, dest, discard)

	var rerr *download.ReadError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *download.ReadError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if errors.Is(err, download.ErrFile) {
		t.Error("read failure must not be reported as a file failure")
	}
}

func TestHandle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := download.Handle(ctx, strings.NewReader("data"), -1, filepath.Join(t.TempDir(), "c"), discard)
	if !errors.Is(err, download.ErrDownloadCancelled) {
		t.Fatalf("expected ErrDownloadCancelled, got %v", err)
	}
}

func TestHandle_Permissions(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "perm")

	if err := download.Handle(t.Context(), strings.NewReader("x"), 1, dest, discard, download.WithPermissions(0o600)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Errorf("expected no group/other bits, got %v", info.Mode().Perm())
	}

	if err := download.Handle(t.Context(), strings.NewReader("x"), 1, dest+"2", discard, download.WithPermissions(0o1777)); err == nil {
		t.Error("expected option error for non-permission bits")
	}
}

func TestOptions_Validation(t *testing.T) {
	dir := t.TempDir()

	if err := download.Handle(t.Context(), strings.NewReader(""), 0, filepath.Join(dir, "a"), discard, download.WithChecksum(nil, "abc")); err == nil {
		t.Error("expected error for nil hash")
	}
	if err := download.Handle(t.Context(), strings.NewReader(""), 0, filepath.Join(dir, "b"), discard, download.WithChecksum(sha256.New(), "")); err == nil {
		t.Error("expected error for empty checksum")
	}
	if err := download.Handle(t.Context(), strings.NewReader(""), 0, "", discard); !errors.Is(err, download.ErrFile) {
		t.Errorf("expected ErrFile for empty path, got %v", err)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestHandle_ProgressLogsCompletion(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	dest := filepath.Join(t.TempDir(), "progress.txt")

	err := download.Handle(t.Context(), strings.NewReader("0123456789"), 10, dest, logger, download.WithProgress())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "download complete") {
		t.Errorf("expected completion log, got %s", out)
	}
	if !strings.Contains(out, "progress=100.0%") {
		t.Errorf("expected 100%% progress, got %s", out)
	}
}

func TestHandle_ChecksumIgnoresCase(t *testing.T) {
	sum := sha256.Sum256([]byte("data"))
	dest := filepath.Join(t.TempDir(), "upper.txt")

	err := download.Handle(t.Context(), strings.NewReader("data"), 4, dest, discard,
		download.WithChecksum(sha256.New(), strings.ToUpper(hex.EncodeToString(sum[:]))),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithProgressInterval_Invalid(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "never.txt")

	err := download.Handle(t.Context(), strings.NewReader("x"), 1, dest, discard, download.WithProgressInterval(0))
	if err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, fs.ErrNotExist) {
		t.Errorf("file should not be created on option error")
	}
}
