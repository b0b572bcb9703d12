package client

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/me/eosched/internal/config"
)

// Factory builds the process's clients from configuration. Each client is
// constructed at most once, on first use, and shared by every caller
// afterwards; a construction error is returned to every caller as well.
type Factory struct {
	cfg    config.Config
	logger *slog.Logger

	// newHTTP and connectBus are replaced in tests.
	newHTTP    func(baseURL string, timeout time.Duration) (Caller, error)
	connectBus func(system bool) (*dbus.Conn, error)

	busOnce sync.Once
	bus     *dbus.Conn
	busErr  error

	orchOnce sync.Once
	orch     Orchestrator
	orchErr  error

	execOnce sync.Once
	exec     Executor
	execErr  error
}

// NewFactory creates a Factory. Nothing is dialled until a client is requested.
func NewFactory(cfg config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger.With("component", "client-factory"),
		newHTTP: func(baseURL string, timeout time.Duration) (Caller, error) {
			return NewHTTPCaller(baseURL, timeout)
		},
		connectBus: ConnectBus,
	}
}

// Orchestrator returns the shared orchestrator client.
func (f *Factory) Orchestrator() (Orchestrator, error) {
	f.orchOnce.Do(func() {
		caller, err := f.caller(PeerOrchestrator)
		if err != nil {
			f.orchErr = fmt.Errorf("orchestrator client: %w", err)
			return
		}
		f.orch = NewOrchestratorClient(caller)
	})
	return f.orch, f.orchErr
}

// Executor returns the shared executor client.
func (f *Factory) Executor() (Executor, error) {
	f.execOnce.Do(func() {
		caller, err := f.caller(PeerExecutor)
		if err != nil {
			f.execErr = fmt.Errorf("executor client: %w", err)
			return
		}
		f.exec = NewExecutorClient(caller)
	})
	return f.exec, f.execErr
}

// Bus returns the shared bus connection, dialling it on first use.
func (f *Factory) Bus() (*dbus.Conn, error) {
	f.busOnce.Do(func() {
		f.bus, f.busErr = f.connectBus(f.cfg.Bus.System)
	})
	return f.bus, f.busErr
}

func (f *Factory) caller(peer string) (Caller, error) {
	kind, err := f.cfg.TransportKind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case config.TransportDBus:
		conn, err := f.Bus()
		if err != nil {
			return nil, err
		}
		f.logger.Info("client ready", "peer", peer, "transport", kind, "service", BusService(peer))
		return NewBusCaller(conn, peer), nil
	default:
		baseURL, err := f.cfg.BaseURL(peer)
		if err != nil {
			return nil, err
		}
		caller, err := f.newHTTP(baseURL, f.cfg.Scheduler.CallTimeout)
		if err != nil {
			return nil, err
		}
		f.logger.Info("client ready", "peer", peer, "transport", kind, "base_url", baseURL)
		return caller, nil
	}
}
