// ABOUTME: Entry point for the leadsync CLI and MCP server
// ABOUTME: Runs the cobra command tree under a context cancelled on interrupt
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/harperreed/leadsync/cli"
)

const version = "0.2.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
