// Command vnas-projector drains the durable PostgreSQL queue and reconciles
// each snapshot into controller/callsign/position session rows.
package main

import (
	"fmt"
	"os"

	"github.com/kengreim/vnas-stats/cmd/projector/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = fmt.Sprintf("%s (%s, %s)", version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
