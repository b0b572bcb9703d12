package client

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/me/eosched/internal/config"
	"github.com/me/eosched/internal/logging"
	"github.com/me/eosched/pkg/model"
)

func TestFactory_HTTPSingleton(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transport = "http"
	f := NewFactory(cfg, logging.Discard())

	var built atomic.Int32
	f.newHTTP = func(baseURL string, timeout time.Duration) (Caller, error) {
		built.Add(1)
		return NewHTTPCaller(baseURL, timeout)
	}

	const n = 32
	clients := make([]Orchestrator, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.Orchestrator()
			if err != nil {
				t.Errorf("Orchestrator: %v", err)
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	if got := built.Load(); got != 1 {
		t.Fatalf("constructed %d networked clients, want 1", got)
	}
	for i := 1; i < n; i++ {
		if clients[i] != clients[0] {
			t.Fatalf("client %d differs from client 0", i)
		}
	}

	oc := clients[0].(*OrchestratorClient)
	hc, ok := oc.caller.(*HTTPCaller)
	if !ok {
		t.Fatalf("caller is %T, want *HTTPCaller", oc.caller)
	}
	if hc.BaseURL() != "http://127.0.0.1:8082/orchestrator/" {
		t.Errorf("BaseURL = %q", hc.BaseURL())
	}
}

func TestFactory_ConfigErrorIsCached(t *testing.T) {
	cfg := config.DefaultConfig()
	delete(cfg.HTTPServers, "executor")
	f := NewFactory(cfg, logging.Discard())

	var built atomic.Int32
	f.newHTTP = func(string, time.Duration) (Caller, error) {
		built.Add(1)
		return nil, nil
	}

	_, err1 := f.Executor()
	_, err2 := f.Executor()
	if !model.IsFatal(err1) || err1 != err2 {
		t.Errorf("errors = %v, %v; want the same ConfigError", err1, err2)
	}
	if built.Load() != 0 {
		t.Error("caller constructed despite configuration error")
	}
}

func TestFactory_UnknownTransport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transport = "carrier-pigeon"
	_, err := NewFactory(cfg, logging.Discard()).Orchestrator()
	if !model.IsFatal(err) {
		t.Errorf("err = %v, want ConfigError", err)
	}
}

func TestFactory_BusDialledOnce(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transport = "dbus"
	f := NewFactory(cfg, logging.Discard())

	var dials atomic.Int32
	dialErr := &model.ConfigError{Key: "bus", Err: errors.New("no session bus")}
	f.connectBus = func(bool) (*dbus.Conn, error) {
		dials.Add(1)
		return nil, dialErr
	}

	_, err := f.Orchestrator()
	if !errors.Is(err, dialErr) {
		t.Errorf("Orchestrator err = %v", err)
	}
	_, err = f.Executor()
	if !errors.Is(err, dialErr) {
		t.Errorf("Executor err = %v", err)
	}
	if dials.Load() != 1 {
		t.Errorf("bus dialled %d times, want 1", dials.Load())
	}
}
