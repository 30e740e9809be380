package rabbitmq

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCAPath is the trust store used for amqps connections when the
// caller does not supply any TLS options.
const DefaultCAPath = "/etc/ssl/certs"

// TLSOptions describes how a TLS connection to the broker is verified.
type TLSOptions struct {
	// CAPath is a directory of PEM encoded CA certificates.
	CAPath string
	// CAFile is a single PEM bundle of CA certificates.
	CAFile string
	// CertFile and KeyFile enable client certificate authentication.
	CertFile string
	KeyFile  string
	// ServerName overrides the host name checked against the server
	// certificate.
	ServerName string

	InsecureSkipVerify bool
}

// DefaultTLSOptions returns the options attached to amqps URLs without
// explicit TLS settings.
func DefaultTLSOptions() *TLSOptions {
	return &TLSOptions{CAPath: DefaultCAPath}
}

// ClientConfig builds a tls.Config for connecting to host. When neither
// CAPath nor CAFile is set the system pool is used.
func (o *TLSOptions) ClientConfig(host string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         host,
		InsecureSkipVerify: o.InsecureSkipVerify, //nolint:gosec
	}
	if o.ServerName != "" {
		cfg.ServerName = o.ServerName
	}

	if o.CAPath != "" || o.CAFile != "" {
		pool := x509.NewCertPool()
		found := false

		if o.CAPath != "" {
			ok, err := appendCertsFromDir(pool, o.CAPath)
			if err != nil {
				return nil, err
			}
			found = found || ok
		}

		if o.CAFile != "" {
			pem, err := os.ReadFile(o.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read CA file: %w", err)
			}
			found = pool.AppendCertsFromPEM(pem) || found
		}

		if !found {
			return nil, ErrNoCertificates
		}
		cfg.RootCAs = pool
	}

	if o.CertFile != "" || o.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func appendCertsFromDir(pool *x509.CertPool, dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read CA directory: %w", err)
	}

	found := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Unreadable entries and non-PEM files are common in system
		// certificate directories.
		pem, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if pool.AppendCertsFromPEM(pem) {
			found = true
		}
	}
	return found, nil
}
