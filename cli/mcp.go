// ABOUTME: MCP server and TUI subcommands
// ABOUTME: Both restore the cached connection and serve the local store
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/leadsync/handlers"
	"github.com/harperreed/leadsync/tui"
)

func newMCPCommand(opts *Options, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the local store to MCP clients over stdio",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			restoreQuietly(cmd, app)
			app.Logger.Info("starting MCP server", zap.String("owner", app.Session.OwnerUserID))

			server := handlers.NewServer(app.Service, app.Session, app.Config.SyncOptions(), version)
			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return fmt.Errorf("MCP server failed: %w", err)
			}
			return nil
		}),
	}
}

func newTUICommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse synced data in an interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			restoreQuietly(cmd, app)
			return tui.Run(cmd.Context(), app.Service, app.Session, app.Config.SyncOptions())
		}),
	}
}

// restoreQuietly reconnects when credentials are cached. Reads work
// without a connection, so failures are only logged.
func restoreQuietly(cmd *cobra.Command, app *App) {
	ok, err := app.Restore(cmd.Context())
	switch {
	case err != nil:
		app.Logger.Warn("failed to load credentials", zap.Error(err))
	case !ok:
		app.Logger.Info("not connected; serving local data only")
	}
}
