// progmem - project memory for the progress tracker
// Records capabilities, rejected candidates and sync history in .claude/project_memory.json
package main

import (
	"fmt"
	"os"

	"github.com/CanopyHQ/progmem/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
