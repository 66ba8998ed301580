package main

import "tools.zach/dev/timecord/internal/paths"

// DataPaths aliases [paths.DataDir] into the main package so daemon code can
// use the path helpers without qualifying the internal package name.
type DataPaths = paths.DataDir
