package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/krisarmstrong/blebridge/pkg/config"
)

var (
	version = "v0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var cliOpts struct {
	configPath      string
	rxPort          int
	txPort          int
	adapter         int
	dryRun          bool
	noObjectManager bool
	noFallback      bool
	storagePath     string
	listen          string
	statusToken     string
	noColor         bool
	monitor         bool
	debugLevel      int
	debugSubsystems []string
}

var rootCmd = &cobra.Command{
	Use:   "blebridge",
	Short: "Bridge BLE link-layer frames between a Renode simulator and the host Bluetooth stack",
	Long: `blebridge translates BLE Link Layer PDUs exchanged over a UDP
transport with a Renode simulation into HCI events/ACL data on the host
Bluetooth controller, and back.

It owns a connection table keyed by both host connection handle and LL
access address, implements the BLE 4.x data-channel hop-increment
algorithm, and forwards advertising, connection setup, data, and
termination between the two sides.`,
	Version: version,
	RunE:    runBridge,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("blebridge %s (commit: %s, built: %s)\n", version, commit, date))

	rootCmd.Flags().StringVar(&cliOpts.configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.Flags().IntVar(&cliOpts.rxPort, "rx-port", config.DefaultRXPort, "UDP port the simulator sends frames to")
	rootCmd.Flags().IntVar(&cliOpts.txPort, "tx-port", config.DefaultTXPort, "UDP port the bridge sends frames to")
	rootCmd.Flags().IntVar(&cliOpts.adapter, "adapter", config.DefaultAdapterIndex, "Host Bluetooth adapter index")
	rootCmd.Flags().BoolVar(&cliOpts.dryRun, "dry-run", false, "Run without opening any host transport; log what would be sent")
	rootCmd.Flags().BoolVar(&cliOpts.noObjectManager, "no-object-manager", false, "Use the raw HCI socket transport instead of the BlueZ D-Bus object manager")
	rootCmd.Flags().BoolVar(&cliOpts.noFallback, "no-fallback", false, "Treat host-transport initialization failure as fatal instead of falling back to dry-run")
	rootCmd.Flags().StringVar(&cliOpts.storagePath, "storage", config.DefaultStoragePath, "Path to the run-history database (use 'disabled' to turn it off)")
	rootCmd.Flags().StringVar(&cliOpts.listen, "listen", config.DefaultStatusAddr, "Status API listen address (empty disables it)")
	rootCmd.Flags().StringVar(&cliOpts.statusToken, "status-token", "", "Bearer token required by the status API (optional)")
	rootCmd.Flags().BoolVar(&cliOpts.noColor, "no-color", false, "Disable colorized log output")
	rootCmd.Flags().BoolVar(&cliOpts.monitor, "monitor", false, "Launch the terminal dashboard instead of plain log output")
	rootCmd.Flags().IntVar(&cliOpts.debugLevel, "debug", 0, "Global trace-log verbosity (0 disables subsystem tracing)")
	rootCmd.Flags().StringArrayVar(&cliOpts.debugSubsystems, "debug-subsystem", nil, "Per-subsystem verbosity override, e.g. --debug-subsystem hop=2 (repeatable)")
}

// Execute runs the root command, exiting nonzero on any returned error —
// fatal initialization failures included, per spec.md §6/§7.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
