// Command discussiond runs the discussion coordination engine: an HTTP/SSE
// server for observer clients, plus CLI utilities for validating scenarios,
// running one headlessly, listing configured models, and migrating the
// durable event store schema.
package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/roundtable/engine/cmd/discussiond/commands"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	commands.Migrations = migrationsFS
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
