// Package core supervises the anonymizing proxy process and the kill switch
// that keeps host traffic inside it.
package core

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/user/nipe/internal/bootstrap"
	"github.com/user/nipe/internal/config"
	"github.com/user/nipe/internal/control"
	"github.com/user/nipe/internal/fault"
	"github.com/user/nipe/internal/firewall"
	"github.com/user/nipe/internal/logger"
	"github.com/user/nipe/internal/metrics"
	"github.com/user/nipe/internal/procutil"
	"github.com/user/nipe/internal/torrc"
)

// State represents the engine state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Engine owns the supervised process and drives start, stop and rotate.
// Tor and Policy are copied in at construction and not modified.
type Engine struct {
	Tor    config.Tor
	Policy config.Firewall

	Firewall firewall.Firewall
	Runner   procutil.Runner
	Torrc    *torrc.Generator
	Metrics  *metrics.Metrics

	// Checker verifies the proxy path. Nil means an HTTPS check through
	// the SOCKS port.
	Checker           bootstrap.Checker
	BootstrapAttempts int
	BootstrapInterval time.Duration

	// LookupPrivilege resolves the account the proxy should run as. A nil
	// result runs it with the caller's privileges.
	LookupPrivilege func() *Privilege

	// BinaryPaths are probed in order before LookPath("tor").
	BinaryPaths []string
	LookPath    func(file string) (string, error)

	// Supervise keeps the process handle after a successful start so
	// Close kills the proxy. Otherwise the handle is detached and the
	// proxy outlives this process.
	Supervise bool

	mu      sync.Mutex
	state   State
	proc    *processHandle
	lastPID int
}

// New creates an engine for cfg using the host's firewall variant.
func New(cfg *config.Config, m *metrics.Metrics) *Engine {
	runner := procutil.ExecRunner{}
	return &Engine{
		Tor:               cfg.Tor,
		Policy:            cfg.Firewall,
		Firewall:          firewall.New(runner),
		Runner:            runner,
		Torrc:             torrc.New(),
		Metrics:           m,
		BootstrapAttempts: bootstrap.DefaultAttempts,
		BootstrapInterval: bootstrap.DefaultInterval,
		LookupPrivilege:   func() *Privilege { return findPrivilege(defaultAccounts, lookupAccount) },
		BinaryPaths:       defaultBinaryPaths,
		LookPath:          exec.LookPath,
		state:             StateStopped,
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == "" {
		return StateStopped
	}
	return e.state
}

// PID returns the pid of the most recently spawned proxy, or 0.
func (e *Engine) PID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPID
}

// Exited is closed when a supervised proxy exits. It is nil when the engine
// holds no process.
func (e *Engine) Exited() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		return nil
	}
	return e.proc.done
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Start brings the proxy up: it stops any prior instance, prepares the
// runtime directory, spawns the proxy, waits for bootstrap and finally
// enables the kill switch. Any failure unwinds through Stop and the
// original error is returned.
func (e *Engine) Start(ctx context.Context) error {
	logger.Info("Starting nipe engine")

	if err := e.Stop(ctx); err != nil {
		logger.Warning("Pre-start cleanup failed (ignored): %v", err)
	}
	e.setState(StateStarting)

	err := e.start(ctx)
	e.Metrics.ObserveStart(err)
	if err != nil {
		logger.Warning("Start failed, rolling back: %v", err)
		if stopErr := e.stop(context.WithoutCancel(ctx)); stopErr != nil {
			logger.Warning("Rollback incomplete (ignored): %v", stopErr)
		}
		e.setState(StateStopped)
		return err
	}

	e.setState(StateRunning)
	logger.Info("Nipe engine started")
	return nil
}

func (e *Engine) start(ctx context.Context) error {
	priv := e.privilege()

	runtimeDir := e.Tor.RuntimeDir()
	if err := os.MkdirAll(e.Tor.DataDirectory, 0700); err != nil {
		return fault.IO(e.Tor.DataDirectory, err)
	}
	if err := os.Chmod(e.Tor.DataDirectory, 0700); err != nil {
		return fault.IO(e.Tor.DataDirectory, err)
	}
	if priv != nil {
		if err := chown(e.Tor.DataDirectory, priv); err != nil {
			return err
		}
	}

	torrcPath := e.Tor.TorrcPath()
	if err := e.Torrc.Write(&e.Tor, torrcPath); err != nil {
		return fault.IO(torrcPath, err)
	}
	if priv != nil {
		if err := chown(torrcPath, priv); err != nil {
			return err
		}
	}
	logger.Debug("Runtime configuration written to %s", torrcPath)

	bin, err := e.findBinary()
	if err != nil {
		return err
	}
	logger.Debug("Using proxy binary at %s", bin)

	logFile, err := e.openLog(runtimeDir, priv)
	if err != nil {
		return err
	}

	h, err := spawn(bin, torrcPath, logFile, priv)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.proc = h
	e.lastPID = h.pid()
	e.mu.Unlock()
	logger.Info("Proxy process started (pid %d)", h.pid())

	if err := e.waitBootstrap(ctx, h); err != nil {
		return err
	}

	if e.Policy.EnableKillSwitch {
		logger.Info("Enabling kill switch (%s)", e.Firewall.Name())
		if err := e.Firewall.EnableKillSwitch(ctx, e.rules(priv)); err != nil {
			return err
		}
		if err := e.Firewall.EnableProxy(ctx, e.Tor.SocksPort); err != nil {
			return err
		}
	} else {
		logger.Warning("Kill switch disabled by configuration; traffic outside the proxy is not blocked")
	}

	if !e.Supervise {
		e.mu.Lock()
		e.proc = nil
		e.mu.Unlock()
		h.detach()
	}
	return nil
}

func (e *Engine) privilege() *Privilege {
	if e.LookupPrivilege == nil {
		return nil
	}
	priv := e.LookupPrivilege()
	if priv == nil {
		logger.Warning("No unprivileged account found; the proxy will run with the caller's privileges")
		return nil
	}
	logger.Info("Proxy will run as %s (uid %d, gid %d)", priv.Name, priv.UID, priv.GID)
	return priv
}

// openLog prepares the runtime directory and truncates the proxy log.
func (e *Engine) openLog(dir string, priv *Privilege) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fault.StartFailed("create log directory", err)
	}
	if err := os.Chmod(dir, 0755); err != nil {
		return nil, fault.IO(dir, err)
	}
	if err := chown(dir, ownerOrSelf(priv)); err != nil {
		return nil, err
	}

	path := e.Tor.LogPath()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return nil, fault.StartFailed("create log file "+path, err)
	}
	if err := os.Chmod(path, 0640); err != nil {
		f.Close()
		return nil, fault.IO(path, err)
	}
	if priv != nil {
		if err := chown(path, priv); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (e *Engine) findBinary() (string, error) {
	for _, p := range e.BinaryPaths {
		if isExecutable(p) {
			return p, nil
		}
	}
	lookPath := e.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	p, err := lookPath(binaryName)
	if err != nil {
		return "", fault.StartFailed("locate "+binaryName, err)
	}
	return p, nil
}

// waitBootstrap polls the checker until it succeeds, the attempt bound runs
// out or the process exits.
func (e *Engine) waitBootstrap(ctx context.Context, h *processHandle) error {
	checker := e.Checker
	if checker == nil {
		c, err := bootstrap.NewHTTPChecker(e.socksAddr(), bootstrap.DefaultRequestTimeout)
		if err != nil {
			return err
		}
		checker = c
	}

	mon := bootstrap.NewMonitor(checker)
	if e.BootstrapAttempts > 0 {
		mon.Attempts = e.BootstrapAttempts
	}
	if e.BootstrapInterval > 0 {
		mon.Interval = e.BootstrapInterval
	}
	mon.OnAttempt = func(int, error) { e.Metrics.ObserveBootstrapAttempt() }

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.done:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	logger.Info("Waiting for bootstrap")
	began := time.Now()
	_, err := mon.Wait(waitCtx)
	if h.exited() {
		return fault.StartFailed("proxy exited during bootstrap (see "+e.Tor.LogPath()+")", h.waitErr())
	}
	if err != nil {
		return err
	}
	e.Metrics.ObserveBootstrap(time.Since(began))
	return nil
}

func (e *Engine) rules(priv *Privilege) *firewall.Rules {
	owner := currentOwner()
	if priv != nil {
		owner = priv.Name
	}
	return &firewall.Rules{
		Owner:     owner,
		DNSPort:   e.Tor.DNSPort,
		TransPort: e.Tor.TransPort,
		AllowLAN:  e.Policy.AllowLAN,
		BlockIPv6: e.Policy.BlockIPv6,
	}
}

func (e *Engine) socksAddr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(e.Tor.SocksPort))
}

// Stop disables the kill switch and the host proxy setting, then
// terminates the proxy. Every phase runs; the first error is returned.
// Stopping an engine that is not running is not an error.
func (e *Engine) Stop(ctx context.Context) error {
	e.setState(StateStopping)
	err := e.stop(ctx)
	e.Metrics.ObserveStop(err)
	e.setState(StateStopped)
	return err
}

func (e *Engine) stop(ctx context.Context) error {
	logger.Info("Stopping nipe engine")

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if err := e.Firewall.DisableKillSwitch(ctx); err != nil {
		logger.Error("Failed to disable kill switch: %v", err)
		keep(err)
	}
	if err := e.Firewall.DisableProxy(ctx); err != nil {
		logger.Error("Failed to clear proxy setting: %v", err)
		keep(err)
	}

	e.mu.Lock()
	h := e.proc
	e.proc = nil
	e.mu.Unlock()

	if h != nil {
		logger.Info("Terminating proxy process (pid %d)", h.pid())
		if err := h.kill(); err != nil {
			keep(fault.StopFailed(fmt.Sprintf("kill pid %d", h.pid()), err))
		}
	} else {
		e.killByPattern(ctx)
	}

	if first == nil {
		logger.Info("Nipe engine stopped")
	}
	return first
}

// killByPattern terminates a proxy started by another nipe invocation. No
// match is not an error.
func (e *Engine) killByPattern(ctx context.Context) {
	name, args := patternKill(filepath.Clean(e.Tor.TorrcPath()))
	if _, err := e.Runner.Run(ctx, name, args...); err != nil {
		logger.Debug("Pattern kill found nothing to stop: %v", err)
	}
}

// Rotate requests a new identity over the control channel.
func (e *Engine) Rotate(ctx context.Context) error {
	logger.Info("Rotating identity")
	err := control.NewClient(e.Tor.ControlPort).Rotate(ctx)
	e.Metrics.ObserveRotation(err)
	return err
}

// Close kills a process handle that is still held. It is the safety net
// for supervised engines and for starts interrupted before detach.
func (e *Engine) Close() error {
	e.mu.Lock()
	h := e.proc
	e.proc = nil
	e.mu.Unlock()
	if h == nil {
		return nil
	}
	logger.Warning("Killing proxy process still owned at teardown (pid %d)", h.pid())
	return h.kill()
}
