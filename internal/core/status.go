package core

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/user/nipe/internal/bootstrap"
)

// Status is the result of one verification request through the proxy.
type Status struct {
	Anonymized bool
	IP         string
}

// CheckStatus asks the verification endpoint, through the SOCKS listener on
// socksPort, whether traffic is anonymized. A failed request is reported in
// IP as "Not Connected (<reason>)" rather than as an error.
func CheckStatus(ctx context.Context, socksPort int) (*Status, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(socksPort))
	checker, err := bootstrap.NewHTTPChecker(addr, bootstrap.DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	return checkWith(ctx, checker), nil
}

func checkWith(ctx context.Context, checker bootstrap.Checker) *Status {
	res, err := checker.Check(ctx)
	if res != nil {
		return &Status{Anonymized: res.IsTor, IP: res.IP}
	}
	return &Status{IP: fmt.Sprintf("Not Connected (%v)", err)}
}

// Status checks the engine's own SOCKS port.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	if e.Checker != nil {
		return checkWith(ctx, e.Checker), nil
	}
	return CheckStatus(ctx, e.Tor.SocksPort)
}
