// conn_windows.go provides the control socket transport for Windows using a
// named pipe via the go-winio library. The path argument is ignored; the
// pipe name is fixed per machine.

//go:build windows

package control

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"

	"tools.zach/dev/timecord/internal/paths"
)

// Listen binds the control named pipe. Pipe security defaults to the
// creating user, which matches the unix socket's 0600 mode.
func Listen(path string) (net.Listener, error) {
	ln, err := winio.ListenPipe(paths.ControlPipeName, nil)
	if err != nil {
		return nil, fmt.Errorf("binding control pipe: %w", err)
	}
	return ln, nil
}

// DialSocket connects to the daemon's control pipe.
func DialSocket(path string) (net.Conn, error) {
	conn, err := winio.DialPipe(paths.ControlPipeName, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to control pipe: %w", err)
	}
	return conn, nil
}
