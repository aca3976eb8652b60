// Package httpx holds the shared client for outbound calls to Slack and the
// LLM provider. Every call is logged with its host, status and latency.
package httpx

import (
	"log"
	"net/http"
	"sync"
	"time"
)

const DefaultTimeout = 90 * time.Second

// loggedTransport records one log line per outbound request.
type loggedTransport struct {
	next http.RoundTripper
}

func (t loggedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		log.Printf("external call failed host=%s method=%s elapsed=%s: %v", req.URL.Host, req.Method, elapsed, err)
		return nil, err
	}
	log.Printf("external call host=%s method=%s status=%d elapsed=%s", req.URL.Host, req.Method, resp.StatusCode, elapsed)
	return resp, nil
}

var (
	mu     sync.RWMutex
	shared = newClient(DefaultTimeout, http.DefaultTransport)
)

func newClient(timeout time.Duration, base http.RoundTripper) *http.Client {
	return &http.Client{Timeout: timeout, Transport: loggedTransport{next: base}}
}

// ExternalHTTPClient returns the client handed to the Slack and Anthropic SDKs.
func ExternalHTTPClient() *http.Client {
	mu.RLock()
	defer mu.RUnlock()
	return shared
}

// ConfigureExternalHTTPClient replaces the shared client with one using the
// given timeout and returns the value applied. Non-positive values fall back
// to DefaultTimeout. Clients handed out earlier keep their old timeout.
func ConfigureExternalHTTPClient(timeoutSeconds int) time.Duration {
	timeout := DefaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	mu.Lock()
	shared = newClient(timeout, http.DefaultTransport)
	mu.Unlock()
	return timeout
}
