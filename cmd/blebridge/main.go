package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/krisarmstrong/blebridge/pkg/bridge"
	"github.com/krisarmstrong/blebridge/pkg/bridgeerr"
	"github.com/krisarmstrong/blebridge/pkg/config"
	"github.com/krisarmstrong/blebridge/pkg/conn"
	"github.com/krisarmstrong/blebridge/pkg/eventloop"
	"github.com/krisarmstrong/blebridge/pkg/history"
	"github.com/krisarmstrong/blebridge/pkg/hoststack"
	"github.com/krisarmstrong/blebridge/pkg/hoststack/dryrun"
	"github.com/krisarmstrong/blebridge/pkg/hoststack/objectmanager"
	"github.com/krisarmstrong/blebridge/pkg/hoststack/rawsocket"
	"github.com/krisarmstrong/blebridge/pkg/logging"
	"github.com/krisarmstrong/blebridge/pkg/monitor"
	"github.com/krisarmstrong/blebridge/pkg/statusapi"
)

func main() {
	Execute()
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cliOpts.configPath != "" {
		var err error
		cfg, err = config.Load(cliOpts.configPath)
		if err != nil {
			return nil, err
		}
	}

	// CLI flags always override the file, matching the teacher's
	// flag-over-file precedence.
	cfg.RXPort = cliOpts.rxPort
	cfg.TXPort = cliOpts.txPort
	cfg.Adapter = cliOpts.adapter
	cfg.DryRun = cliOpts.dryRun
	cfg.NoObjectManager = cliOpts.noObjectManager
	cfg.NoFallback = cliOpts.noFallback
	cfg.StoragePath = cliOpts.storagePath
	cfg.StatusAddr = cliOpts.listen
	cfg.StatusToken = cliOpts.statusToken
	cfg.NoColor = cliOpts.noColor
	cfg.DebugLevel = cliOpts.debugLevel

	return cfg, nil
}

// buildDebugConfig turns --debug and repeated --debug-subsystem
// name=level flags into a logging.DebugConfig. Malformed subsystem
// overrides are warned about and skipped rather than treated as fatal,
// matching the teacher's tolerant config-parsing style.
func buildDebugConfig(cfg *config.Config, overrides []string) *logging.DebugConfig {
	debug := logging.NewDebugConfig(cfg.DebugLevel)
	for _, raw := range overrides {
		name, level, ok := strings.Cut(raw, "=")
		if !ok {
			logging.Warning("main: ignoring malformed --debug-subsystem %q (want name=level)", raw)
			continue
		}
		n, err := strconv.Atoi(level)
		if err != nil {
			logging.Warning("main: ignoring --debug-subsystem %q: %v", raw, err)
			continue
		}
		debug.SetSubsystemLevel(name, n)
	}
	return debug
}

// openHostTransport selects and opens the host-stack collaborator per
// spec.md §7: the object-manager transport by default, the raw HCI socket
// when --no-object-manager is set, a dry-run no-op when --dry-run is set,
// and a dry-run fallback on initialization failure unless --no-fallback
// promotes that failure to fatal.
func openHostTransport(cfg *config.Config) (hoststack.HostTransport, statusapi.TransportKind, error) {
	if cfg.DryRun {
		return dryrun.New(), statusapi.TransportDryRun, nil
	}

	var (
		transport hoststack.HostTransport
		err       error
		kind      statusapi.TransportKind
	)
	if cfg.NoObjectManager {
		transport, err = rawsocket.Open(cfg.Adapter)
		kind = statusapi.TransportRawSocket
	} else {
		transport, err = objectmanager.Open(cfg.Adapter)
		kind = statusapi.TransportObjectManager
	}

	if err != nil {
		if cfg.NoFallback {
			return nil, "", bridgeerr.Wrap(bridgeerr.FatalInitError, err, "opening host transport")
		}
		logging.Warning("main: host transport init failed, falling back to dry-run: %v", err)
		return dryrun.New(), statusapi.TransportDryRun, nil
	}

	return transport, kind, nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	validation := config.NewValidator().Validate(cfg)
	for _, problem := range validation.Errors {
		if problem.Severity == config.SeverityError {
			logging.Error("config: %s", problem.Error())
		} else {
			logging.Warning("config: %s", problem.Error())
		}
	}
	if validation.HasErrors() {
		return validation
	}

	logging.InitColors(!cfg.NoColor)
	logging.Info("blebridge %s starting (rx=%d tx=%d adapter=%d)", version, cfg.RXPort, cfg.TXPort, cfg.Adapter)

	// history.Open returns an error for a disabled store (including the
	// "disabled"/empty sentinel path), but Record/Close are nil-safe, so a
	// disabled store is not a startup failure.
	historyStore, err := history.Open(config.ExpandStoragePath(cfg.StoragePath))
	if err != nil {
		logging.Info("main: connection history disabled: %v", err)
		historyStore = nil
	}
	defer historyStore.Close()

	host, transportKind, err := openHostTransport(cfg)
	if err != nil {
		return err
	}

	rxConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: cfg.RXPort})
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.FatalInitError, err, "binding rx socket")
	}
	defer rxConn.Close()

	txSocket, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return bridgeerr.Wrap(bridgeerr.FatalInitError, err, "binding tx socket")
	}
	defer txSocket.Close()
	txAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: cfg.TXPort}

	debugCfg := buildDebugConfig(cfg, cliOpts.debugSubsystems)

	sim := &eventloop.UDPSimSender{Conn: txSocket, Addr: txAddr}
	core := bridge.New(host, sim, nil)
	core.Debug = debugCfg
	core.OnConnectionClosed = func(c conn.Connection) {
		rec := history.ConnectionRecord{
			Handle:          c.Handle,
			StartedAt:       c.StartedAt,
			Duration:        time.Since(c.StartedAt),
			FramesSimToHost: c.FramesSimToHost,
			FramesHostToSim: c.FramesHostToSim,
			BytesSimToHost:  c.BytesSimToHost,
			BytesHostToSim:  c.BytesHostToSim,
			Reason:          history.TerminatedLocal,
		}
		if err := historyStore.Record(rec); err != nil {
			logging.Warning("main: recording connection history: %v", err)
		}
	}

	loop := eventloop.New(core, host, rxConn, txSocket, txAddr)
	loop.Debug = debugCfg

	status := statusapi.New(core.Table, core.Stats, cfg.StatusToken, transportKind, cfg.DryRun)
	go func() {
		if err := status.ListenAndServe(cfg.StatusAddr); err != nil {
			logging.Error("main: status api: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	if cliOpts.monitor {
		program := tea.NewProgram(monitor.New(core.Table, core.Stats))
		go func() {
			if _, err := program.Run(); err != nil {
				logging.Error("main: monitor: %v", err)
			}
			cancel()
		}()
	} else {
		logging.Success("blebridge ready; press Ctrl+C to stop")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logging.Info("main: shutting down")
		cancel()
	case <-ctx.Done():
	}

	<-loopErr

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := status.Shutdown(shutdownCtx); err != nil {
		logging.Warning("main: status api shutdown: %v", err)
	}

	return nil
}
