package adaptor

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/me/eosched/internal/client"
	"github.com/me/eosched/pkg/model"
)

// busConn is the part of *dbus.Conn the adaptor uses.
type busConn interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
}

// BusAdaptor exports one handler object on D-Bus under the well-known name
// of its peer.
type BusAdaptor struct {
	conn    busConn
	service string
	path    dbus.ObjectPath
	logger  *slog.Logger
}

// NewBusAdaptor exports obj at client.BusPath(peer) with interface
// client.BusService(peer) and claims that name. Any failure, including the
// name being owned by another process, is a ConfigError.
func NewBusAdaptor(conn *dbus.Conn, peer string, obj interface{}, logger *slog.Logger) (*BusAdaptor, error) {
	return newBusAdaptor(conn, peer, obj, logger)
}

func newBusAdaptor(conn busConn, peer string, obj interface{}, logger *slog.Logger) (*BusAdaptor, error) {
	a := &BusAdaptor{
		conn:    conn,
		service: client.BusService(peer),
		path:    client.BusPath(peer),
		logger:  logger.With("component", "bus-adaptor", "peer", peer),
	}

	if err := conn.Export(obj, a.path, a.service); err != nil {
		return nil, &model.ConfigError{Key: "bus", Err: fmt.Errorf("export %s: %w", a.path, err)}
	}

	node := &introspect.Node{
		Name: string(a.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{Name: a.service, Methods: introspect.Methods(obj)},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), a.path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, &model.ConfigError{Key: "bus", Err: fmt.Errorf("export introspection: %w", err)}
	}

	reply, err := conn.RequestName(a.service, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, &model.ConfigError{Key: "bus", Err: fmt.Errorf("request name %s: %w", a.service, err)}
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, model.NewConfigError("bus", "name %s already taken", a.service)
	}

	a.logger.Info("bus object exported", "service", a.service, "path", a.path)
	return a, nil
}

// Service returns the claimed bus name.
func (a *BusAdaptor) Service() string {
	return a.service
}

// Close releases the bus name.
func (a *BusAdaptor) Close() error {
	if _, err := a.conn.ReleaseName(a.service); err != nil {
		return fmt.Errorf("release name %s: %w", a.service, err)
	}
	return nil
}
