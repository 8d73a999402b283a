// Package fault defines the error kinds reported by the nipe engine.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind int

const (
	KindOther Kind = iota
	KindStartFailed
	KindStopFailed
	KindBootstrapTimeout
	KindNotConnected
	KindFirewall
	KindInterfaceNotFound
	KindIO
	KindRequest
	KindConfig
)

var kindText = map[Kind]string{
	KindOther:             "error",
	KindStartFailed:       "proxy process failed to start",
	KindStopFailed:        "proxy process failed to stop",
	KindBootstrapTimeout:  "bootstrap timeout",
	KindNotConnected:      "not connected to the anonymizing network",
	KindFirewall:          "firewall configuration failed",
	KindInterfaceNotFound: "network interface not found",
	KindIO:                "i/o error",
	KindRequest:           "request error",
	KindConfig:            "configuration error",
}

// String returns the human readable name of the kind.
func (k Kind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Op names the step that failed (a command,
// a path, an endpoint) and Err carries the upstream cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A bare sentinel
// such as ErrBootstrapTimeout matches any error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// Sentinels for errors.Is.
var (
	ErrStartFailed       = &Error{Kind: KindStartFailed}
	ErrStopFailed        = &Error{Kind: KindStopFailed}
	ErrBootstrapTimeout  = &Error{Kind: KindBootstrapTimeout}
	ErrNotConnected      = &Error{Kind: KindNotConnected}
	ErrFirewall          = &Error{Kind: KindFirewall}
	ErrInterfaceNotFound = &Error{Kind: KindInterfaceNotFound}
	ErrIO                = &Error{Kind: KindIO}
	ErrRequest           = &Error{Kind: KindRequest}
	ErrConfig            = &Error{Kind: KindConfig}
)

// New returns a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// StartFailed wraps err as a start failure.
func StartFailed(op string, err error) error {
	return New(KindStartFailed, op, err)
}

// StopFailed wraps err as a stop failure.
func StopFailed(op string, err error) error {
	return New(KindStopFailed, op, err)
}

// Firewall wraps err as a firewall failure.
func Firewall(op string, err error) error {
	return New(KindFirewall, op, err)
}

// IO wraps err as an i/o failure on path.
func IO(path string, err error) error {
	return New(KindIO, path, err)
}

// Request wraps err as a network request failure.
func Request(op string, err error) error {
	return New(KindRequest, op, err)
}

// Config wraps err as a configuration failure.
func Config(op string, err error) error {
	return New(KindConfig, op, err)
}

// Other returns an unclassified error with the given reason.
func Other(reason string) error {
	return New(KindOther, reason, nil)
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindOther when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}
