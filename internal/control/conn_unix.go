// conn_unix.go provides the control socket transport for Unix-like systems:
// a unix domain socket inside the data directory, permission-restricted to
// the owning user.

//go:build !windows

package control

import (
	"fmt"
	"net"
	"os"
)

// Listen binds the control socket at path, replacing a stale socket file
// left by a previous process.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale control socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("binding control socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("restricting control socket: %w", err)
	}
	return ln, nil
}

// DialSocket connects to the daemon's control socket at path.
func DialSocket(path string) (net.Conn, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to control socket: %w", err)
	}
	return conn, nil
}
