// Package client is a session-style facade over [net/http]: per-client
// default headers, cookies and proxy, plus a single [Client.Request]
// call that shapes every outcome into a [Response].
//
// # Building a Client
//
// A [Config] is an immutable snapshot of defaults. Every option is
// "override or inherit": settings left out keep the hard defaults
// below, applied once when the Client is created.
//
//	cfg, err := client.NewConfig(
//		client.WithTimeout(10*time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//	c, err := client.New(cfg)
//
// [Build] combines both steps. Defaults:
//
//   - decompression off ([decompress.None])
//   - redirects followed, at most 10
//   - timeout 90s, covering the body
//   - HTTP/2 preferred ([Version20]); [VersionUnset] sends HTTP/1.1
//   - errors not swallowed: a failed Response is also returned as an [*Error]
//   - proxy taken from the environment (HTTP_PROXY, HTTPS_PROXY, NO_PROXY)
//   - TLS versions and roots as in [crypto/tls]
//
// # Making Requests
//
//	resp, err := c.Request(ctx, "https://api.example.com/v1/items",
//		client.WithMethod(http.MethodPost),
//		client.WithContent(`{"name":"a"}`),
//		client.WithContentType("application/json"),
//	)
//
// Default headers are copied first, then call-site headers replace any of
// the same name. A Response is returned even when err != nil, so status,
// headers and Text stay available:
//
//	var cerr *client.Error
//	if errors.As(err, &cerr) {
//		log.Println(cerr.Response.StatusCode, cerr.Response.Text)
//	}
//
// With [WithSwallowErrors] set, err is nil and callers inspect
// [Response.Failure] themselves.
//
// # Failures
//
// Failures are captured into Response.Err and match one of
// [ErrTimeout], [ErrCanceled], [ErrTransport] or [ErrFilesystem] with
// [errors.Is]. Timeouts and cancellation both report status 408 and
// differ by reason phrase and sentinel. A completed response outside
// 200-299 fails with an [*UnexpectedStatusError].
//
// # Downloading Files
//
//	resp, err := c.Get(ctx, fileURL, client.WithDownload("/tmp/file.bin",
//		download.WithChecksum(sha256.New(), expectedHex),
//	))
//
// The target must not exist; it is never overwritten.
package client
