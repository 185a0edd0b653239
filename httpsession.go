// Package httpsession exposes the client builders.
package httpsession

import (
	"fmt"

	"github.com/adamwoolhether/httpsession/client"
	"github.com/adamwoolhether/httpsession/client/settings"
)

// NewClient instantiates a new *client.Client with the provided options.
// Unset options keep the defaults documented on [client.Config].
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// NewClientFromEnv reads defaults from environment variables under
// prefix, see [settings.Load], then applies opts on top.
func NewClientFromEnv(prefix string, opts ...client.Option) (*client.Client, error) {
	s, err := settings.Load(prefix)
	if err != nil {
		return nil, err
	}

	cfg, err := s.Config(opts...)
	if err != nil {
		return nil, fmt.Errorf("building config from %s_*: %w", prefix, err)
	}

	return client.New(cfg)
}
