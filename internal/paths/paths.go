// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile     = "daemon.pid"
	ConfigFile  = "config.toml"
	LogFile     = "daemon.log"
	TokenFile   = "github-token"
	ControlSock = "control.sock"
)

// ControlPipeName is the Windows named pipe used for the control socket.
const ControlPipeName = `\\.\pipe\timecord-control`

const (
	BinaryName = "timecord"
	DataDirRel = ".timecord" // relative to $HOME
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Token returns the full path to the stored identity token file.
func (d DataDir) Token() string { return filepath.Join(d.Root, TokenFile) }

// Control returns the full path to the control socket.
func (d DataDir) Control() string { return filepath.Join(d.Root, ControlSock) }
