// Unix/Darwin signal handling for graceful daemon shutdown. Listens for
// SIGINT (Ctrl+C) and SIGTERM, the signal process managers send to request a
// graceful stop.

//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// signalChannel returns a buffered channel receiving SIGINT and SIGTERM.
// The buffer of 1 keeps a signal from being lost while the receiver is busy.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
