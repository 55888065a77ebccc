// Package transport builds the HTTP client used to reach the Jimmy backend.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
)

// Options configures the HTTP client.
// CertPath, KeyPath and CAPath are either all empty (server-auth TLS or plain
// HTTP) or all set (mTLS over HTTP/2).
type Options struct {
	CertPath string
	KeyPath  string
	CAPath   string
	// Timeout bounds each request; zero means no timeout.
	Timeout time.Duration
}

// MutualTLS reports whether client certificates are configured.
func (o Options) MutualTLS() bool {
	return o.CertPath != "" || o.KeyPath != "" || o.CAPath != ""
}

// Validate checks that certificate options are complete.
func (o Options) Validate() error {
	if !o.MutualTLS() {
		return nil
	}
	if o.CertPath == "" {
		return fmt.Errorf("certPath required")
	}
	if o.KeyPath == "" {
		return fmt.Errorf("keyPath required")
	}
	if o.CAPath == "" {
		return fmt.Errorf("caPath required")
	}
	return nil
}

// Build creates the HTTP client. With certificates it speaks HTTP/2 over
// mTLS 1.3 only; without, it negotiates HTTP/2 via ALPN and falls back to
// HTTP/1.1 for plain http:// backends.
func Build(opts Options) (*http.Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if !opts.MutualTLS() {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if err := http2.ConfigureTransport(base); err != nil {
			return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
		}
		return &http.Client{Transport: base, Timeout: opts.Timeout}, nil
	}

	clientCert, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(opts.CAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
	}

	return &http.Client{
		Transport: &http2.Transport{TLSClientConfig: tlsConfig},
		Timeout:   opts.Timeout,
	}, nil
}
