// nipe routes all host traffic through Tor and blocks anything that tries
// to leave outside it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/nipe/internal/config"
	"github.com/user/nipe/internal/logger"
)

var version = "dev"

var (
	cfgFile string
	verbose bool

	loaded *config.Manager
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "[✗]", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nipe",
	Short: "Route all traffic through the Tor network",
	Long: `nipe starts a Tor process, waits until traffic through it is verified,
then installs a kill switch so nothing leaves the host outside Tor.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	startCmd.Flags().String("country", "", "exit node country code (e.g. us, de), applied strictly")

	rootCmd.AddCommand(startCmd, stopCmd, restartCmd, statusCmd, rotateCmd, daemonCmd, configCmd)
}

// setup loads the configuration and starts logging. Log lines at Info and
// above are mirrored to stderr, or everything with --verbose.
func setup() (*config.Manager, error) {
	if loaded != nil {
		return loaded, nil
	}
	path := cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}

	mgr := config.NewManager(path)
	if err := mgr.Load(); err != nil {
		return nil, err
	}

	level := logger.LevelInfo
	if verbose {
		level = logger.LevelDebug
	}
	logger.AddListener(level, func(line string) {
		fmt.Fprintln(os.Stderr, line)
	})

	if err := logger.Init(mgr.Get().Log.Path); err != nil {
		logger.Warning("Log file unavailable, logging to stderr only: %v", err)
	}
	logger.Debug("Configuration loaded from %s", mgr.Path())
	loaded = mgr
	return mgr, nil
}
