package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/eosched/pkg/model"
)

// Transport selects how processes reach the orchestrator and executor.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportDBus Transport = "dbus"
)

// Config holds configuration shared by the scheduler, orchestrator and executor.
type Config struct {
	Transport Transport `yaml:"transport"` // "http" or "dbus"
	LogLevel  string    `yaml:"log_level"` // debug, info, warn, error
	LogFormat string    `yaml:"log_format"`
	DBPath    string    `yaml:"db_path"` // SQLite database path (":memory:" for testing)

	// HTTPServers holds listen addresses keyed by configuration prefix
	// ("orchestrator", "executor").
	HTTPServers map[string]HTTPServerConfig `yaml:"http_servers"`

	Bus          BusConfig          `yaml:"bus"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// HTTPServerConfig is the listen address of one HTTP adaptor.
type HTTPServerConfig struct {
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port"`
}

// BusConfig selects the D-Bus bus.
type BusConfig struct {
	System bool `yaml:"system"` // system bus instead of the session bus
}

// SchedulerConfig tunes the scheduling loop.
type SchedulerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
	CallRetries   int           `yaml:"call_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	MinFreeMemory uint64        `yaml:"min_free_memory"` // bytes, 0 disables
	MinFreeDisk   uint64        `yaml:"min_free_disk"`   // bytes, 0 disables
	DiskPath      string        `yaml:"disk_path"`
}

// OrchestratorConfig lists the processors the orchestrator accepts requests for.
type OrchestratorConfig struct {
	Processors []ProcessorConfig `yaml:"processors"`
}

// ProcessorConfig registers one processor. SchedulingFlags is the decision
// returned for every request; empty means SCHEDULE_NEXT.
type ProcessorConfig struct {
	ID              int    `yaml:"id"`
	Name            string `yaml:"name"`
	SchedulingFlags string `yaml:"scheduling_flags"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Transport: TransportHTTP,
		LogLevel:  "info",
		LogFormat: "text",
		DBPath:    "eosched.db",
		HTTPServers: map[string]HTTPServerConfig{
			"orchestrator": {ListenAddress: "127.0.0.1", ListenPort: 8082},
			"executor":     {ListenAddress: "127.0.0.1", ListenPort: 8083},
		},
		Scheduler: SchedulerConfig{
			PollInterval: 60 * time.Second,
			CallTimeout:  30 * time.Second,
			CallRetries:  2,
			RetryBackoff: 2 * time.Second,
			DiskPath:     "/",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg. Fields absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// TransportKind validates the transport selector.
func (c Config) TransportKind() (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(string(c.Transport)))); t {
	case TransportHTTP, TransportDBus:
		return t, nil
	case "":
		return "", model.NewConfigError("transport", "required")
	default:
		return "", model.NewConfigError("transport", "unknown value %q (want http or dbus)", c.Transport)
	}
}

// peersByRole lists the HTTP servers each process role needs to reach or bind.
var peersByRole = map[string][]string{
	"scheduler":    {"orchestrator"},
	"notify":       {"orchestrator"},
	"orchestrator": {"orchestrator"},
	"executor":     {"executor"},
}

// Validate checks the settings the given process role depends on. Every
// failure is a ConfigError.
func (c Config) Validate(role string) error {
	if strings.TrimSpace(c.DBPath) == "" {
		return model.NewConfigError("db_path", "required")
	}
	s := c.Scheduler
	if s.PollInterval < 0 {
		return model.NewConfigError("scheduler.poll_interval", "must not be negative")
	}
	if s.CallTimeout < 0 {
		return model.NewConfigError("scheduler.call_timeout", "must not be negative")
	}
	if s.CallRetries < 0 {
		return model.NewConfigError("scheduler.call_retries", "must not be negative")
	}
	if s.RetryBackoff < 0 {
		return model.NewConfigError("scheduler.retry_backoff", "must not be negative")
	}

	peers, ok := peersByRole[role]
	if !ok {
		return nil
	}
	kind, err := c.TransportKind()
	if err != nil {
		return err
	}
	if kind != TransportHTTP {
		return nil
	}
	for _, p := range peers {
		if _, err := c.ListenAddr(p); err != nil {
			return err
		}
	}
	return nil
}

// ListenAddr returns "host:port" for the HTTP server registered under prefix.
// A missing entry, blank address or invalid port is a ConfigError.
func (c Config) ListenAddr(prefix string) (string, error) {
	key := "http_servers." + prefix
	srv, ok := c.HTTPServers[prefix]
	if !ok {
		return "", model.NewConfigError(key, "not configured")
	}
	if strings.TrimSpace(srv.ListenAddress) == "" {
		return "", model.NewConfigError(key+".listen_address", "required")
	}
	if srv.ListenPort <= 0 || srv.ListenPort > 65535 {
		return "", model.NewConfigError(key+".listen_port", "invalid port %d", srv.ListenPort)
	}
	return net.JoinHostPort(strings.TrimSpace(srv.ListenAddress), strconv.Itoa(srv.ListenPort)), nil
}

// BaseURL returns the URL under which the controller for prefix is served.
func (c Config) BaseURL(prefix string) (string, error) {
	addr, err := c.ListenAddr(prefix)
	if err != nil {
		return "", err
	}
	return "http://" + addr + "/" + prefix + "/", nil
}
