// Package httpx builds the outbound HTTP clients. Nothing in dsns sends
// through http.DefaultClient.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// phases bounds the connection setup of a transport. The overall request
// limit is the client's business.
type phases struct {
	dial    time.Duration // also the TLS handshake limit
	headers time.Duration
}

const (
	probeTimeout    = 5 * time.Second
	maxIdle         = 16
	maxIdlePerHost  = 4
	idleConnTimeout = 30 * time.Second
)

var (
	probePhases  = phases{dial: 3 * time.Second, headers: 3 * time.Second}
	streamPhases = phases{dial: 10 * time.Second, headers: 30 * time.Second}
)

// NewClient returns a client for short requests such as health probes.
// timeout defaults to five seconds and also caps each connection phase.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = probeTimeout
	}
	p := phases{dial: min(timeout, probePhases.dial), headers: min(timeout, probePhases.headers)}
	return &http.Client{Timeout: timeout, Transport: p.transport()}
}

// NewStreamingClient returns the traced client that fetches media bodies.
// It has no overall timeout: a transfer ends with its request context.
func NewStreamingClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(streamPhases.transport())}
}

func (p phases) transport() *http.Transport {
	dialer := &net.Dialer{Timeout: p.dial, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   p.dial,
		ResponseHeaderTimeout: p.headers,
		ExpectContinueTimeout: time.Second,
		// Media is relayed byte for byte.
		DisableCompression: true,
	}
}
