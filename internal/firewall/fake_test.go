package firewall

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/user/nipe/internal/procutil"
)

// fakeRunner records every command and answers through handle.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	handle func(name string, args []string) ([]byte, error)
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, procutil.CommandLine(name, args...))
	handle := r.handle
	r.mu.Unlock()

	if handle == nil {
		return nil, nil
	}
	return handle(name, args)
}

func (r *fakeRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRunner) ran(prefix string) bool {
	for _, c := range r.commands() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func failure(name string, args []string, stderr string) error {
	return &procutil.CommandError{Name: name, Args: args, Stderr: stderr, Err: errors.New("exit status 1")}
}

// xtables simulates iptables/ip6tables chain state keyed by
// "bin/table" -> chain -> rule specs.
type xtables struct {
	state map[string]map[string][]string
}

func newXtables() *xtables {
	x := &xtables{state: make(map[string]map[string][]string)}
	for _, key := range []string{"iptables/nat", "iptables/filter", "ip6tables/filter"} {
		x.state[key] = map[string][]string{"OUTPUT": nil}
	}
	return x
}

func (x *xtables) clone() map[string]map[string][]string {
	out := make(map[string]map[string][]string)
	for k, chains := range x.state {
		out[k] = make(map[string][]string)
		for c, rules := range chains {
			out[k][c] = append([]string(nil), rules...)
		}
	}
	return out
}

func (x *xtables) handle(name string, args []string) ([]byte, error) {
	table := "filter"
	var op, chain string
	var rest []string
	for i := 0; i < len(args); i++ {
		switch a := args[i]; a {
		case "-t":
			i++
			table = args[i]
		case "-n":
		case "-N", "-F", "-X", "-A", "-I", "-D", "-L":
			op = a
			i++
			chain = args[i]
			if op == "-I" && i+1 < len(args) && args[i+1] == "1" {
				i++
			}
		default:
			rest = append(rest, a)
		}
	}

	chains, ok := x.state[name+"/"+table]
	if !ok {
		return nil, failure(name, args, "can't initialize "+name+" table `"+table+"'")
	}
	spec := strings.Join(rest, " ")
	_, exists := chains[chain]

	switch op {
	case "-L":
		if !exists {
			return nil, failure(name, args, "No chain/target/match by that name.")
		}
		return []byte(strings.Join(chains[chain], "\n")), nil
	case "-N":
		if exists {
			return nil, failure(name, args, "Chain already exists.")
		}
		chains[chain] = nil
	case "-F":
		if !exists {
			return nil, failure(name, args, "No chain/target/match by that name.")
		}
		chains[chain] = nil
	case "-X":
		if !exists {
			return nil, failure(name, args, "No chain/target/match by that name.")
		}
		if len(chains[chain]) > 0 {
			return nil, failure(name, args, "Directory not empty.")
		}
		delete(chains, chain)
	case "-A":
		if !exists {
			return nil, failure(name, args, "No chain/target/match by that name.")
		}
		chains[chain] = append(chains[chain], spec)
	case "-I":
		chains[chain] = append([]string{spec}, chains[chain]...)
	case "-D":
		for i, r := range chains[chain] {
			if r == spec {
				chains[chain] = append(chains[chain][:i], chains[chain][i+1:]...)
				if len(chains[chain]) == 0 {
					chains[chain] = nil
				}
				return nil, nil
			}
		}
		return nil, failure(name, args, "Bad rule (does a matching rule exist in that chain?).")
	}
	return nil, nil
}
