// Package settings loads client defaults from environment variables.
//
// With prefix "APP", the recognized variables are:
//
//	APP_TIMEOUT         request timeout, e.g. "30s"
//	APP_AUTO_REDIRECT   follow redirects, "true" or "false"
//	APP_SWALLOW_ERRORS  return failed responses without an error
//	APP_VERSION         "1.0", "1.1", "2.0" or ""
//	APP_PROXY           proxy address, see proxy.Parse
//	APP_DIRECT          ignore APP_PROXY and the environment proxy
//	APP_DECOMPRESSION   e.g. "gzip,deflate" or "all"
//	APP_TLS_VERSIONS    e.g. "1.2,1.3"
//	APP_USER_AGENT      default User-Agent
//	APP_HEADERS         extra default headers, "Name:value,Other:value"
//
// Unset variables leave the client default in place.
package settings

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/adamwoolhether/httpsession/client"
	"github.com/adamwoolhether/httpsession/client/decompress"
)

// Settings mirrors the environment. Pointer fields are nil when unset.
type Settings struct {
	Timeout       *time.Duration    `envconfig:"TIMEOUT"`
	AutoRedirect  *bool             `envconfig:"AUTO_REDIRECT"`
	SwallowErrors *bool             `envconfig:"SWALLOW_ERRORS"`
	Version       string            `envconfig:"VERSION"`
	Proxy         string            `envconfig:"PROXY"`
	Direct        bool              `envconfig:"DIRECT"`
	Decompression string            `envconfig:"DECOMPRESSION"`
	TLSVersions   []string          `envconfig:"TLS_VERSIONS"`
	UserAgent     string            `envconfig:"USER_AGENT"`
	Headers       map[string]string `envconfig:"HEADERS"`
}

// Load reads the variables under prefix.
func Load(prefix string) (*Settings, error) {
	var s Settings
	if err := envconfig.Process(prefix, &s); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &s, nil
}

// Options converts the settings to client options. Only variables that
// were set produce an option.
func (s *Settings) Options() ([]client.Option, error) {
	var opts []client.Option

	if s.Timeout != nil {
		opts = append(opts, client.WithTimeout(*s.Timeout))
	}
	if s.AutoRedirect != nil {
		opts = append(opts, client.WithAutoRedirect(*s.AutoRedirect))
	}
	if s.SwallowErrors != nil {
		opts = append(opts, client.WithSwallowErrors(*s.SwallowErrors))
	}

	if strings.TrimSpace(s.Version) != "" {
		v, err := client.ParseVersion(s.Version)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithVersion(v))
	}

	switch {
	case s.Direct:
		opts = append(opts, client.WithoutProxy())
	case strings.TrimSpace(s.Proxy) != "":
		opts = append(opts, client.WithProxyAddress(s.Proxy))
	}

	if s.Decompression != "" {
		m, err := decompress.ParseMethod(s.Decompression)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithDecompression(m))
	}

	if len(s.TLSVersions) > 0 {
		versions := make([]client.TLSVersion, 0, len(s.TLSVersions))
		for _, raw := range s.TLSVersions {
			v, err := parseTLSVersion(raw)
			if err != nil {
				return nil, err
			}
			versions = append(versions, v)
		}
		opts = append(opts, client.WithTLSVersions(versions...))
	}

	if s.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(s.UserAgent))
	}
	if len(s.Headers) > 0 {
		h := http.Header{}
		for k, v := range s.Headers {
			h.Set(strings.TrimSpace(k), strings.TrimSpace(v))
		}
		opts = append(opts, client.WithHeaders(h))
	}

	return opts, nil
}

// Config builds a client.Config from the settings with extra applied last.
func (s *Settings) Config(extra ...client.Option) (*client.Config, error) {
	opts, err := s.Options()
	if err != nil {
		return nil, err
	}
	return client.NewConfig(append(opts, extra...)...)
}

func parseTLSVersion(s string) (client.TLSVersion, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "TLS") {
	case "1.0", "10":
		return client.TLS10, nil
	case "1.1", "11":
		return client.TLS11, nil
	case "1.2", "12":
		return client.TLS12, nil
	case "1.3", "13":
		return client.TLS13, nil
	default:
		return 0, fmt.Errorf("unknown tls version %q", s)
	}
}
