package main

import (
	"runtime"

	"backup-dr/cmd"
)

// Build information, overridden at build time via -ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, buildTime, gitCommit, runtime.Version())
	cmd.Execute()
}
