// Windows signal handling for graceful daemon shutdown. Windows has no
// SIGTERM; the Go runtime maps CTRL_BREAK_EVENT and console-close events to
// os.Interrupt, which is the only signal registered here.

//go:build windows

package main

import (
	"os"
	"os/signal"
)

// signalChannel returns a buffered channel receiving os.Interrupt. The
// buffer of 1 keeps a signal from being lost while the receiver is busy.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch
}
