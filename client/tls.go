package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"slices"
	"time"
)

const tlsHandshakeTimeout = 10 * time.Second

// ErrCertificateRejected is returned when a [CertificateValidator]
// refuses a server certificate.
var ErrCertificateRejected = errors.New("server certificate rejected")

// CertificateValidator decides whether a server certificate is accepted.
// verifyErr is the result of standard chain and hostname verification,
// nil when the certificate is trusted. Go verifies per connection, so
// the server name stands in for the request.
type CertificateValidator func(serverName string, leaf *x509.Certificate, chain []*x509.Certificate, verifyErr error) bool

// TLSVersion is a TLS protocol version.
type TLSVersion uint16

const (
	TLS10 TLSVersion = tls.VersionTLS10
	TLS11 TLSVersion = tls.VersionTLS11
	TLS12 TLSVersion = tls.VersionTLS12
	TLS13 TLSVersion = tls.VersionTLS13
)

func (v TLSVersion) String() string {
	return tls.VersionName(uint16(v))
}

func (v TLSVersion) valid() bool {
	switch v {
	case TLS10, TLS11, TLS12, TLS13:
		return true
	default:
		return false
	}
}

// tlsBounds returns the min and max of versions, zero when empty.
func tlsBounds(versions []TLSVersion) (uint16, uint16) {
	if len(versions) == 0 {
		return 0, 0
	}
	return uint16(slices.Min(versions)), uint16(slices.Max(versions))
}

// newTLSConfig builds the transport TLS config. Chain verification is
// moved into VerifyConnection so the validator can be swapped at runtime;
// InsecureSkipVerify only turns off the built-in copy of that check.
func (c *Client) newTLSConfig(o *options) *tls.Config {
	cfg := &tls.Config{}
	if o.tlsConfig != nil {
		cfg = o.tlsConfig.Clone()
	}

	if minV, maxV := tlsBounds(o.tlsVersions); minV != 0 {
		cfg.MinVersion = minV
		cfg.MaxVersion = maxV
	}

	c.insecure = cfg.InsecureSkipVerify
	c.roots = cfg.RootCAs
	cfg.InsecureSkipVerify = true
	cfg.VerifyConnection = c.verifyConnection

	return cfg
}

func (c *Client) verifyConnection(cs tls.ConnectionState) error {
	return c.verifyPeer(cs.ServerName, cs)
}

// dialTLS handshakes direct connections itself so verification sees the
// dialed host, including IP literals that SNI leaves out. Connections
// tunnelled through a proxy are handshaked by the transport and fall
// back to verifyConnection.
func (c *Client) dialTLS(dial func(context.Context, string, string) (net.Conn, error), nextProtos ...string) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		raw, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		cfg := c.tlsConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		cfg.NextProtos = nextProtos
		name := cfg.ServerName
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return c.verifyPeer(name, cs)
		}

		hsCtx, cancel := context.WithTimeout(ctx, tlsHandshakeTimeout)
		defer cancel()

		conn := tls.Client(raw, cfg)
		if err := conn.HandshakeContext(hsCtx); err != nil {
			raw.Close()
			return nil, err
		}

		return conn, nil
	}
}

func (c *Client) verifyPeer(serverName string, cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("tls: server presented no certificates")
	}

	opts := x509.VerifyOptions{
		DNSName:       serverName,
		Roots:         c.roots,
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}

	leaf := cs.PeerCertificates[0]
	_, verifyErr := leaf.Verify(opts)

	fn := c.certValidator.Load()
	if fn == nil {
		if c.insecure {
			return nil
		}
		return verifyErr
	}

	if (*fn)(serverName, leaf, cs.PeerCertificates, verifyErr) {
		return nil
	}
	if verifyErr != nil {
		return fmt.Errorf("%w: %w", ErrCertificateRejected, verifyErr)
	}
	return ErrCertificateRejected
}

// SetCertificateValidator replaces the validator; nil restores standard
// verification. Safe to call while requests are in flight.
func (c *Client) SetCertificateValidator(fn CertificateValidator) {
	if fn == nil {
		c.certValidator.Store(nil)
		return
	}
	c.certValidator.Store(&fn)
}

// TLSVersions returns the negotiated version bounds, zero meaning the
// Go default.
func (c *Client) TLSVersions() (minVersion, maxVersion TLSVersion) {
	return TLSVersion(c.tlsConfig.MinVersion), TLSVersion(c.tlsConfig.MaxVersion)
}
