package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/nipe/internal/core"
	"github.com/user/nipe/internal/elevate"
	"github.com/user/nipe/internal/metrics"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start Tor and enable the kill switch",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop Tor and restore the firewall",
	RunE:  runStop,
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop, then start again",
	RunE:  runRestart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether traffic leaves through Tor",
	RunE:  runStatus,
}

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Request a new Tor identity",
	RunE:  runRotate,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the current configuration",
	RunE:  runConfig,
}

// newEngine loads configuration and applies command line overrides.
func newEngine(cmd *cobra.Command, action string, m *metrics.Metrics) (*core.Engine, error) {
	if err := elevate.Ensure(action); err != nil {
		return nil, err
	}
	mgr, err := setup()
	if err != nil {
		return nil, err
	}

	cfg := *mgr.Get()
	if f := cmd.Flags().Lookup("country"); f != nil && f.Changed {
		cfg.Tor.Country = strings.ToLower(f.Value.String())
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return core.New(&cfg, m), nil
}

func runStart(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd, "change firewall rules", nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Println(rule)
	fmt.Println("  Starting nipe...")
	fmt.Println(rule)

	if err := engine.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	fmt.Println("[✓] Tor process started")
	if engine.Policy.EnableKillSwitch {
		fmt.Println("[✓] Kill switch enabled")
		fmt.Println("[✓] System proxy configured")
	} else {
		fmt.Println("[!] Kill switch disabled by configuration")
	}
	fmt.Println("\nnipe is active, traffic is routed through Tor")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd, "restore firewall rules", nil)
	if err != nil {
		return err
	}
	if err := engine.Stop(cmd.Context()); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	fmt.Println("[✓] Tor process stopped")
	fmt.Println("[✓] Firewall rules restored")
	return nil
}

func runRestart(cmd *cobra.Command, args []string) error {
	if err := runStop(cmd, args); err != nil {
		return err
	}
	return runStart(cmd, args)
}

func runStatus(cmd *cobra.Command, args []string) error {
	mgr, err := setup()
	if err != nil {
		return err
	}

	st, err := core.CheckStatus(cmd.Context(), mgr.Get().Tor.SocksPort)
	if err != nil {
		return err
	}

	fmt.Println(rule)
	fmt.Println("  NIPE CONNECTION STATUS")
	fmt.Println(rule)
	if st.Anonymized {
		fmt.Println("  Status:      CONNECTED (ANONYMOUS)")
		fmt.Printf("  Current IP:  %s\n", st.IP)
		fmt.Println("  Protection:  Kill switch active")
	} else {
		fmt.Println("  Status:      NOT CONNECTED")
		fmt.Printf("  Current IP:  %s\n", st.IP)
		fmt.Println("  Protection:  None")
	}
	fmt.Println(rule)
	return nil
}

func runRotate(cmd *cobra.Command, args []string) error {
	mgr, err := setup()
	if err != nil {
		return err
	}
	cfg := mgr.Get()
	engine := core.New(cfg, nil)
	if err := engine.Rotate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to rotate identity: %w", err)
	}
	fmt.Println("[✓] New identity requested")
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	mgr, err := setup()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "# %s\n", mgr.Path())
	return yaml.NewEncoder(os.Stdout).Encode(mgr.Get())
}
