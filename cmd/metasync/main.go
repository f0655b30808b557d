// Package main provides the entry point for the metasync CLI tool.
package main

import (
	"github.com/meTasking/sync/cmd/metasync/cmd"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
