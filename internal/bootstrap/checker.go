// Package bootstrap proves the proxy path works end to end by fetching a
// verification endpoint through the local SOCKS listener.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	"github.com/user/nipe/internal/fault"
)

const (
	// DefaultCheckURL answers {"IsTor": bool, "IP": "..."}.
	DefaultCheckURL = "https://check.torproject.org/api/ip"

	// DefaultRequestTimeout bounds one verification round trip.
	DefaultRequestTimeout = 5 * time.Second

	maxResponseBytes = 64 << 10
)

// Result is the verification endpoint's answer.
type Result struct {
	IsTor bool   `json:"IsTor"`
	IP    string `json:"IP"`
}

// Checker performs one verification round trip.
type Checker interface {
	Check(ctx context.Context) (*Result, error)
}

// HTTPChecker fetches URL with Client, which normally dials through the
// local SOCKS listener.
type HTTPChecker struct {
	URL    string
	Client *http.Client
}

// NewHTTPChecker returns a checker whose requests go through the SOCKS5
// listener at socksAddr. Host names are resolved by the proxy.
func NewHTTPChecker(socksAddr string, timeout time.Duration) (*HTTPChecker, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fault.Config("socks dialer", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fault.Config("socks dialer", fmt.Errorf("dialer for %s does not support contexts", socksAddr))
	}

	transport := &http.Transport{
		DialContext:         contextDialer.DialContext,
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}

	return &HTTPChecker{
		URL: DefaultCheckURL,
		Client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

// Check performs one GET and decodes the response. A reachable endpoint
// that reports a non-anonymized client yields a not-connected error along
// with the result.
func (c *HTTPChecker) Check(ctx context.Context) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fault.Request(c.URL, err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fault.Request(c.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.Request(c.URL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&res); err != nil {
		return nil, fault.Request(c.URL, fmt.Errorf("failed to decode response: %w", err))
	}

	if !res.IsTor {
		return &res, fault.New(fault.KindNotConnected, "exit address "+res.IP, nil)
	}
	return &res, nil
}
