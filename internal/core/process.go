package core

import (
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/user/nipe/internal/fault"
	"github.com/user/nipe/internal/logger"
	"github.com/user/nipe/internal/procutil"
)

const killTimeout = 5 * time.Second

// processHandle is the engine's exclusive claim on the proxy process. A
// background goroutine reaps the process and closes done when it exits.
type processHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// spawn starts bin with the runtime configuration, sending both output
// streams to logFile. The caller's copy of logFile is closed once the child
// holds its own.
func spawn(bin, torrcPath string, logFile *os.File, priv *Privilege) (*processHandle, error) {
	cmd := procutil.HideWindow(exec.Command(bin, "-f", torrcPath))
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setProcAttr(cmd, priv)

	err := cmd.Start()
	logFile.Close()
	if err != nil {
		return nil, fault.StartFailed("spawn "+bin, err)
	}

	h := &processHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		defer logger.Recover("reapProxy")
		h.err = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

func (h *processHandle) pid() int {
	return h.cmd.Process.Pid
}

func (h *processHandle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// waitErr is the process exit status. Valid only after done is closed.
func (h *processHandle) waitErr() error {
	if h.err == nil {
		return errors.New("exit status 0")
	}
	return h.err
}

// kill terminates the process and waits for it to be reaped.
func (h *processHandle) kill() error {
	if h.exited() {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(killTimeout):
		return errors.New("process did not exit after kill")
	}
}

// detach gives up ownership without terminating the process. The reaper
// keeps running so a long-lived caller does not accumulate zombies.
func (h *processHandle) detach() {
	logger.Debug("Released ownership of proxy process (pid %d)", h.pid())
}
