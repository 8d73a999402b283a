package torrc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/nipe/internal/config"
)

func testGenerator(existing ...string) *Generator {
	set := make(map[string]bool)
	for _, p := range existing {
		set[p] = true
	}
	return &Generator{
		GOOS:   "linux",
		Exists: func(p string) bool { return set[p] },
	}
}

func baseTor() *config.Tor {
	return &config.Tor{
		SocksPort:     9050,
		ControlPort:   9051,
		DNSPort:       9061,
		TransPort:     9040,
		DataDirectory: "/tmp/nipe/tor-data",
	}
}

func TestRenderPorts(t *testing.T) {
	out := testGenerator().Render(baseTor())

	for _, want := range []string{
		"SocksPort 9050\n",
		"ControlPort 9051\n",
		"DNSPort 9061\n",
		"TransPort 9040\n",
		"DataDirectory /tmp/nipe/tor-data\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "UseBridges") || strings.Contains(out, "ExitNodes") {
		t.Errorf("unexpected optional directives:\n%s", out)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	cfg := baseTor()
	cfg.UseBridges = true
	cfg.Bridges = []string{
		"obfs4 192.0.2.1:443 FINGERPRINT cert=abc iat-mode=0",
		"obfs4 192.0.2.2:443 FINGERPRINT cert=def iat-mode=0",
	}
	cfg.ExitNodes = []string{"us", "de"}

	g := testGenerator("/usr/local/bin/obfs4proxy")
	first := g.Render(cfg)
	second := g.Render(cfg)
	if first != second {
		t.Fatalf("renders differ:\n%s\n---\n%s", first, second)
	}
}

func TestRenderExitNodesWithoutStrict(t *testing.T) {
	cfg := baseTor()
	cfg.ExitNodes = []string{"us"}

	out := testGenerator().Render(cfg)
	if !strings.Contains(out, "ExitNodes {us}\n") {
		t.Errorf("missing exit node restriction:\n%s", out)
	}
	if strings.Contains(out, "StrictNodes") {
		t.Errorf("explicit exit nodes must not enable strict mode:\n%s", out)
	}
}

func TestRenderMixedExitNodes(t *testing.T) {
	cfg := baseTor()
	cfg.ExitNodes = []string{"DE", "ABCD1234ABCD1234ABCD1234ABCD1234ABCD1234"}

	out := testGenerator().Render(cfg)
	want := "ExitNodes {de},ABCD1234ABCD1234ABCD1234ABCD1234ABCD1234\n"
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
}

func TestRenderCountryShorthand(t *testing.T) {
	cfg := baseTor()
	cfg.Country = "NL"

	out := testGenerator().Render(cfg)
	if !strings.Contains(out, "ExitNodes {nl}\nStrictNodes 1\n") {
		t.Errorf("country shorthand not rendered:\n%s", out)
	}

	cfg.ExitNodes = []string{"us"}
	out = testGenerator().Render(cfg)
	if strings.Contains(out, "{nl}") || strings.Contains(out, "StrictNodes") {
		t.Errorf("explicit exit nodes take precedence over country:\n%s", out)
	}
}

func TestRenderBridges(t *testing.T) {
	cfg := baseTor()
	cfg.UseBridges = true
	cfg.Bridges = []string{"obfs4 192.0.2.1:443 AAAA cert=x iat-mode=0"}

	tests := []struct {
		name     string
		plugin   string
		existing []string
		want     string
	}{
		{"explicit plugin", "/srv/obfs4", nil, "ClientTransportPlugin obfs4 exec /srv/obfs4\n"},
		{"probed plugin", "", []string{"/usr/local/bin/obfs4proxy"}, "ClientTransportPlugin obfs4 exec /usr/local/bin/obfs4proxy\n"},
		{"fallback plugin", "", nil, "ClientTransportPlugin obfs4 exec /usr/bin/obfs4proxy\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			c.ClientTransportPlugin = tt.plugin
			out := testGenerator(tt.existing...).Render(&c)
			if !strings.Contains(out, "UseBridges 1\n") {
				t.Errorf("missing UseBridges:\n%s", out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("missing %q:\n%s", tt.want, out)
			}
			if !strings.Contains(out, "Bridge obfs4 192.0.2.1:443 AAAA cert=x iat-mode=0\n") {
				t.Errorf("missing bridge line:\n%s", out)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torrc")
	g := testGenerator()
	if err := g.Write(baseTor(), path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != g.Render(baseTor()) {
		t.Error("written file differs from rendered text")
	}
}
