package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/user/nipe/internal/fault"
	"github.com/user/nipe/internal/logger"
)

const (
	DefaultAttempts = 60
	DefaultInterval = time.Second
)

// Monitor polls a Checker until it confirms the proxy path or the attempt
// bound is exhausted.
type Monitor struct {
	Checker  Checker
	Attempts int
	Interval time.Duration

	// OnAttempt, if set, is called after every check.
	OnAttempt func(attempt int, err error)
}

// NewMonitor returns a monitor with the default bound of 60 attempts one
// second apart.
func NewMonitor(checker Checker) *Monitor {
	return &Monitor{
		Checker:  checker,
		Attempts: DefaultAttempts,
		Interval: DefaultInterval,
	}
}

// Wait returns the first successful result. The first success ends the
// loop immediately; exhausting every attempt yields a bootstrap-timeout
// error wrapping the last failure.
func (m *Monitor) Wait(ctx context.Context) (*Result, error) {
	attempts := m.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := m.Checker.Check(ctx)
		if m.OnAttempt != nil {
			m.OnAttempt(attempt, err)
		}
		if err == nil {
			logger.Info("Bootstrap complete after %d attempt(s), exit address %s", attempt, res.IP)
			return res, nil
		}
		lastErr = err

		if attempt%5 == 1 {
			logger.Info("Waiting for bootstrap... (%d/%d): %v", attempt, attempts, err)
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(m.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fault.New(fault.KindBootstrapTimeout, "cancelled", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fault.New(fault.KindBootstrapTimeout, fmt.Sprintf("%d attempts", attempts), lastErr)
}
