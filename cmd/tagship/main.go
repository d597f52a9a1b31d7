package main

import (
	"github.com/relforge/tagship/internal/cli"
)

// Populated via -ldflags at release build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Commit = commit
	cli.Date = date
	cli.Execute(version)
}
