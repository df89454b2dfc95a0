package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// DBusClient defines the interface for D-Bus operations.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/nowplayingd/internal/monitor DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// ListNames returns all names on the bus
	ListNames(ctx context.Context) ([]string, error)

	// GetProperty retrieves a property from a D-Bus object
	// player: The bus name (e.g., "org.mpris.MediaPlayer2.spotify")
	// path: The object path (e.g., "/org/mpris/MediaPlayer2")
	// prop: The property name (e.g., "org.mpris.MediaPlayer2.Player.Metadata")
	GetProperty(ctx context.Context, player, path, prop string) (dbus.Variant, error)
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient opens a private connection to the session bus.
// A private connection can be closed and reopened without affecting other
// users of the shared session bus in this process.
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, err
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// ListNames returns all names on the bus. The call is abandoned when ctx ends.
func (c *StdDBusClient) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

// GetProperty retrieves a property from a D-Bus object.
// prop is the fully qualified name, interface and property joined by a dot.
func (c *StdDBusClient) GetProperty(ctx context.Context, player, path, prop string) (dbus.Variant, error) {
	idx := strings.LastIndex(prop, ".")
	if idx <= 0 || idx == len(prop)-1 {
		return dbus.Variant{}, fmt.Errorf("invalid property name %q", prop)
	}

	var value dbus.Variant
	obj := c.conn.Object(player, dbus.ObjectPath(path))
	err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, prop[:idx], prop[idx+1:]).Store(&value)
	return value, err
}
