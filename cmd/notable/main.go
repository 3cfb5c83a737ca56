// Command notable filters bird observation exports down to the records a
// rules file flags as notable.
//
// Usage:
//
//	notable filter ebird -i ebd.txt -r rules.csv -o notable.txt
//	notable filter inat -i observations.csv -r rules.csv -o notable.csv --extended
//	notable rules check -r rules.csv
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/notable-obs-filter/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
