//go:build !windows

package core

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/user/nipe/internal/fault"
)

const binaryName = "tor"

var defaultAccounts = []string{"debian-tor", "tor", "_tor", "nobody"}

var defaultBinaryPaths = []string{
	"/usr/bin/tor",
	"/usr/sbin/tor",
	"/usr/local/bin/tor",
	"/opt/homebrew/bin/tor", // Apple Silicon Homebrew
	"/opt/local/bin/tor",    // MacPorts
}

func lookupAccount(name string) (*Privilege, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("account %s: uid %q: %w", name, u.Uid, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("account %s: gid %q: %w", name, u.Gid, err)
	}
	return &Privilege{Name: name, UID: uint32(uid), GID: uint32(gid)}, nil
}

// ownerOrSelf is priv, or the effective ids of this process.
func ownerOrSelf(priv *Privilege) *Privilege {
	if priv != nil {
		return priv
	}
	return &Privilege{
		Name: strconv.Itoa(os.Geteuid()),
		UID:  uint32(os.Geteuid()),
		GID:  uint32(os.Getegid()),
	}
}

func chown(path string, priv *Privilege) error {
	if err := unix.Chown(path, int(priv.UID), int(priv.GID)); err != nil {
		return fault.IO(path, fmt.Errorf("chown %d:%d: %w", priv.UID, priv.GID, err))
	}
	return nil
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

// currentOwner names this process's effective user for the kill switch.
func currentOwner() string {
	return strconv.Itoa(os.Geteuid())
}

// setProcAttr drops to priv before the proxy image executes and puts the
// proxy in its own process group so terminal signals aimed at nipe do not
// reach it.
func setProcAttr(cmd *exec.Cmd, priv *Privilege) {
	attr := &syscall.SysProcAttr{Setpgid: true}
	if priv != nil {
		attr.Credential = &syscall.Credential{Uid: priv.UID, Gid: priv.GID}
	}
	cmd.SysProcAttr = attr
}

func patternKill(torrcPath string) (string, []string) {
	return "pkill", []string{"-f", binaryName + " -f " + torrcPath}
}
