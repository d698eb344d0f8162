// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// TLSConfig holds TLS options for outbound requests: custom corporate CA
// bundles, or certificate verification bypass for local development.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Development and testing only.
	InsecureSkipVerify bool

	// CACertificate is the path to a custom CA certificate file in PEM
	// format, for corporate proxies or internal services.
	CACertificate string
}

// ConfigureTLS builds an http.Transport from a TLSConfig. A nil config
// yields a default transport.
func ConfigureTLS(config *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{},
	}
	if config == nil {
		return transport, nil
	}

	if config.CACertificate != "" {
		caCert, err := os.ReadFile(config.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", config.CACertificate, err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", config.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = caCertPool
	}

	if config.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
		slog.Warn("TLS certificate verification disabled - NOT for production use")
	}

	return transport, nil
}

// WithTLSConfig applies a TLSConfig to the client's transport. Used after
// WithHTTPClient, it replaces that client's transport (keeping its
// timeout); used before, WithHTTPClient carries the TLS settings over
// into the custom client's transport.
func WithTLSConfig(config *TLSConfig) Option {
	return func(c *Client) {
		if config == nil {
			return
		}

		transport, err := ConfigureTLS(config)
		if err != nil {
			slog.Warn("Failed to configure TLS, keeping default transport", "error", err)
			return
		}

		if c.client != nil {
			timeout := c.client.Timeout
			c.client.Transport = transport
			c.client.Timeout = timeout
		} else {
			c.client = &http.Client{
				Transport: transport,
				Timeout:   120 * time.Second,
			}
		}
	}
}

// mergeTLSTransport carries TLS settings configured on the old client's
// transport over to a replacement client that lacks them.
func mergeTLSTransport(old, replacement *http.Client) {
	if old == nil || old.Transport == nil || replacement == nil {
		return
	}
	existing, ok := old.Transport.(*http.Transport)
	if !ok || existing.TLSClientConfig == nil {
		return
	}

	if replacement.Transport == nil {
		replacement.Transport = &http.Transport{TLSClientConfig: &tls.Config{}}
	}
	next, ok := replacement.Transport.(*http.Transport)
	if !ok {
		return
	}
	if next.TLSClientConfig == nil {
		next.TLSClientConfig = &tls.Config{}
	}
	next.TLSClientConfig.RootCAs = existing.TLSClientConfig.RootCAs
	next.TLSClientConfig.InsecureSkipVerify = existing.TLSClientConfig.InsecureSkipVerify
	slog.Debug("Preserved TLS configuration when setting custom HTTP client")
}
