//go:build windows

package core

import (
	"errors"
	"os"
	"os/exec"
	"os/user"

	"golang.org/x/sys/windows"
)

const binaryName = "tor.exe"

// Windows has no account switch at spawn time.
var defaultAccounts []string

var defaultBinaryPaths = []string{
	`C:\Program Files\Tor Browser\Browser\TorBrowser\Tor\tor.exe`,
	`C:\Program Files\Tor\tor.exe`,
	`C:\Program Files (x86)\Tor\tor.exe`,
}

func lookupAccount(string) (*Privilege, error) {
	return nil, errors.New("not supported on windows")
}

func ownerOrSelf(priv *Privilege) *Privilege {
	return priv
}

func chown(string, *Privilege) error {
	return nil
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func currentOwner() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "SYSTEM"
}

func setProcAttr(cmd *exec.Cmd, _ *Privilege) {
	if cmd.SysProcAttr != nil {
		cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
	}
}

func patternKill(string) (string, []string) {
	return "taskkill", []string{"/F", "/IM", binaryName}
}
