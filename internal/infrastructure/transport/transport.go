// Package transport builds the outbound HTTP clients used to talk to discovery,
// cloud metadata, monitored applications and notification endpoints.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// ProxySettings is shared with the management proxy. SSLHostnameValidationEnabled
// starts true and is switched off by Configure when TLS errors are ignored.
type ProxySettings struct {
	SSLHostnameValidationEnabled bool
}

func NewProxySettings() *ProxySettings {
	return &ProxySettings{SSLHostnameValidationEnabled: true}
}

type ClientFactory struct {
	insecure bool
	roots    func() (*x509.CertPool, error)
}

// Configure returns the factory every outbound client is built from. With
// ignoreTLSErrors set, clients accept any certificate and hostname and proxy
// hostname validation is turned off. Without it nothing is relaxed.
func Configure(ignoreTLSErrors bool, proxy *ProxySettings) (*ClientFactory, error) {
	f := &ClientFactory{
		insecure: ignoreTLSErrors,
		roots:    x509.SystemCertPool,
	}
	if !ignoreTLSErrors {
		return f, nil
	}

	if proxy != nil {
		proxy.SSLHostnameValidationEnabled = false
	}
	slog.Warn("tls certificate validation disabled for outbound clients",
		slog.Bool("proxy_hostname_validation", false),
	)
	return f, nil
}

func (f *ClientFactory) IgnoresTLSErrors() bool {
	return f.insecure
}

// Transport returns a new pooled transport.
func (f *ClientFactory) Transport() *http.Transport {
	t := cleanhttp.DefaultPooledTransport()
	if f.insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return t
}

// Client returns a client on a fresh pooled transport. A zero timeout means none.
func (f *ClientFactory) Client(timeout time.Duration) *http.Client {
	c := cleanhttp.DefaultPooledClient()
	c.Transport = f.Transport()
	c.Timeout = timeout
	return c
}

// ProxyTransport returns the transport used by the management proxy. With
// hostname validation off the certificate chain is still verified against the
// system roots.
func (f *ClientFactory) ProxyTransport(settings *ProxySettings) (*http.Transport, error) {
	t := cleanhttp.DefaultPooledTransport()
	if settings == nil || settings.SSLHostnameValidationEnabled {
		return t, nil
	}

	roots, err := f.roots()
	if err != nil {
		return nil, fmt.Errorf("failed to load system root certificates: %w", err)
	}
	t.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec
		VerifyConnection:   verifyChain(roots),
	}
	return t, nil
}

func verifyChain(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("tls: no peer certificates")
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := cs.PeerCertificates[0].Verify(opts)
		return err
	}
}
