package core

import "github.com/user/nipe/internal/logger"

// Privilege is the unprivileged account the proxy runs as.
type Privilege struct {
	Name string
	UID  uint32
	GID  uint32
}

// findPrivilege returns the first candidate account lookup resolves, in
// priority order.
func findPrivilege(candidates []string, lookup func(name string) (*Privilege, error)) *Privilege {
	for _, name := range candidates {
		p, err := lookup(name)
		if err != nil {
			logger.Debug("Account %s unavailable: %v", name, err)
			continue
		}
		return p
	}
	return nil
}
