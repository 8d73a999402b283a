package fault

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := Firewall("iptables -t nat -N NIPE", errors.New("exit status 1: chain exists"))
	want := "firewall configuration failed: iptables -t nat -N NIPE: exit status 1: chain exists"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if got := ErrBootstrapTimeout.Error(); got != "bootstrap timeout" {
		t.Errorf("sentinel message = %q", got)
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("start: %w", StartFailed("spawn tor", io.EOF))

	if !errors.Is(err, ErrStartFailed) {
		t.Error("expected errors.Is to match ErrStartFailed")
	}
	if errors.Is(err, ErrStopFailed) {
		t.Error("start failure must not match ErrStopFailed")
	}
	if !errors.Is(err, io.EOF) {
		t.Error("cause should stay reachable through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"plain", errors.New("boom"), KindOther},
		{"io", IO("/tmp/nipe", io.ErrUnexpectedEOF), KindIO},
		{"wrapped", fmt.Errorf("outer: %w", ErrBootstrapTimeout), KindBootstrapTimeout},
		{"outermost wins", StartFailed("x", Firewall("y", nil)), KindStartFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
