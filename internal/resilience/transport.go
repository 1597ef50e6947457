// Package resilience provides the shared HTTP transport, call deadline, and
// circuit breaker plumbing used by every outbound vendor call.
package resilience

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// TransportConfig holds HTTP transport settings shared by the vendor SDK
// clients. The relay is a single-user local process, so the pool is sized for
// a handful of concurrent requests rather than gateway traffic.
var TransportConfig = struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	H2ReadIdleTimeout     time.Duration
	H2PingTimeout         time.Duration
}{
	MaxIdleConns:        64,
	MaxIdleConnsPerHost: 8,

	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 60 * time.Second,
	DialTimeout:           10 * time.Second,
	KeepAlive:             30 * time.Second,

	H2ReadIdleTimeout: 30 * time.Second,
	H2PingTimeout:     15 * time.Second,
}

var (
	sharedTransport     *http.Transport
	sharedTransportOnce sync.Once
)

// SharedTransport returns the singleton transport handed to every vendor SDK
// client, configured with HTTP/2 support and connection pooling.
func SharedTransport() *http.Transport {
	sharedTransportOnce.Do(func() {
		sharedTransport = newBaseTransport()
		sharedTransport.DialContext = newDialer().DialContext
	})
	return sharedTransport
}

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   TransportConfig.DialTimeout,
		KeepAlive: TransportConfig.KeepAlive,
	}
}

func newBaseTransport() *http.Transport {
	t := &http.Transport{
		MaxIdleConns:        TransportConfig.MaxIdleConns,
		MaxIdleConnsPerHost: TransportConfig.MaxIdleConnsPerHost,
		IdleConnTimeout:     TransportConfig.IdleConnTimeout,

		TLSHandshakeTimeout:   TransportConfig.TLSHandshakeTimeout,
		ExpectContinueTimeout: TransportConfig.ExpectContinueTimeout,
		ResponseHeaderTimeout: TransportConfig.ResponseHeaderTimeout,

		ForceAttemptHTTP2: true,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	configureHTTP2(t)
	return t
}

func configureHTTP2(transport *http.Transport) {
	h2Transport, err := http2.ConfigureTransports(transport)
	if err != nil {
		return
	}
	h2Transport.ReadIdleTimeout = TransportConfig.H2ReadIdleTimeout
	h2Transport.PingTimeout = TransportConfig.H2PingTimeout
}

// NewHTTPClient returns an http.Client on the shared transport. A zero
// timeout leaves cancellation to the per-call context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: SharedTransport(),
		Timeout:   timeout,
	}
}
