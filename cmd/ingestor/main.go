// Command vnas-ingestor polls the vNAS datafeed and enqueues snapshots onto
// the durable PostgreSQL queue for the projector to consume.
package main

import (
	"fmt"
	"os"

	"github.com/kengreim/vnas-stats/cmd/ingestor/commands"
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
