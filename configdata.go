// Package timecord holds embedded assets shared by the timecord binaries.
//
// The default configuration is generated by cmd/genconfig (run via go
// generate in internal/config) and embedded here so the daemon can seed a
// fresh data directory with a fully commented config file.
package timecord

import _ "embed"

// DefaultConfigTOML is the generated default configuration file.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
