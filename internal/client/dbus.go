package client

import (
	"context"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/me/eosched/pkg/model"
)

const busPrefix = "org.eosched."

// BusService returns the well-known D-Bus service name of peer,
// e.g. "org.eosched.Orchestrator". It doubles as the interface name.
func BusService(peer string) string {
	return busPrefix + exportName(peer)
}

// BusPath returns the object path of peer, e.g. "/org/eosched/Orchestrator".
func BusPath(peer string) dbus.ObjectPath {
	return dbus.ObjectPath("/" + strings.ReplaceAll(busPrefix, ".", "/") + exportName(peer))
}

func exportName(peer string) string {
	if peer == "" {
		return ""
	}
	return strings.ToUpper(peer[:1]) + peer[1:]
}

// ConnectBus opens a new connection to the session or system bus.
// Failure is a ConfigError: a process that needs the bus cannot start without it.
func ConnectBus(system bool) (*dbus.Conn, error) {
	var conn *dbus.Conn
	var err error
	if system {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.ConnectSessionBus()
	}
	if err != nil {
		return nil, &model.ConfigError{Key: "bus", Err: err}
	}
	return conn, nil
}

// busObject is the part of dbus.BusObject the caller uses.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// BusCaller invokes methods on a peer's exported object. Bodies travel as a
// single string argument; an empty body sends no argument.
type BusCaller struct {
	obj   busObject
	iface string
}

// NewBusCaller creates a caller for peer on conn.
func NewBusCaller(conn *dbus.Conn, peer string) *BusCaller {
	return &BusCaller{
		obj:   conn.Object(BusService(peer), BusPath(peer)),
		iface: BusService(peer),
	}
}

// Call implements Caller.
func (c *BusCaller) Call(ctx context.Context, method string, body []byte) ([]byte, error) {
	var args []interface{}
	if len(body) > 0 {
		args = append(args, string(body))
	}

	call := c.obj.CallWithContext(ctx, c.iface+"."+method, 0, args...)
	if call.Err != nil {
		return nil, &model.TransportError{Method: method, Err: call.Err}
	}
	if len(call.Body) == 0 {
		return nil, nil
	}
	var out string
	if err := call.Store(&out); err != nil {
		return nil, &model.TransportError{Method: method, Err: err}
	}
	return []byte(out), nil
}
