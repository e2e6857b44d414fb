// Package osd sends on-screen desktop notifications over the freedesktop
// Notifications bus (spec.md §6: "OSD is emitted via a desktop-notification
// bus").
package osd

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = "/org/freedesktop/Notifications"
	interfaceM = "org.freedesktop.Notifications.Notify"
)

// Notifier sends notifications over the session D-Bus.
type Notifier struct {
	conn    *dbus.Conn
	appName string
}

// New connects to the user's session bus.
func New(appName string) (*Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("osd: connecting to session bus: %w", err)
	}
	return &Notifier{conn: conn, appName: appName}, nil
}

// Notify posts a notification with summary and body, expiring after
// timeout (0 means the notification server's default).
func (n *Notifier) Notify(summary, body string, timeout time.Duration) error {
	obj := n.conn.Object(busName, dbus.ObjectPath(objectPath))

	expireMS := int32(-1)
	if timeout > 0 {
		expireMS = int32(timeout.Milliseconds())
	}

	call := obj.Call(interfaceM, 0,
		n.appName,
		uint32(0),
		"",
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		expireMS,
	)
	if call.Err != nil {
		return fmt.Errorf("osd: Notify call failed: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	return n.conn.Close()
}
