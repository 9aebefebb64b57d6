// ABOUTME: Root cobra command and shared wiring for every subcommand
// ABOUTME: Global flags build an App per invocation and release it afterwards
package cli

import (
	"github.com/spf13/cobra"
)

type runFunc func(cmd *cobra.Command, app *App, args []string) error

// withApp opens the runtime for the duration of one command.
func withApp(opts *Options, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), *opts)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()
		return fn(cmd, app, args)
	}
}

// NewRootCommand builds the leadsync command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "leadsync",
		Short: "Mirror CRM contacts and opportunities into a local store",
		Long: `leadsync pulls contacts, opportunities and pipelines from the CRM
into a local store, keeps them fresh on a schedule and serves them to the
terminal, a TUI and MCP clients.

Start with:
  leadsync connect          # store an API key and verify it
  leadsync sync             # run one pass
  leadsync daemon           # keep syncing every few minutes`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/leadsync/config.json)")
	flags.StringVar(&opts.DBPath, "db-path", "", "Local store path, overrides the config")
	flags.StringVar(&opts.CredentialsPath, "credentials", "", "Credentials cache file")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	_ = flags.MarkHidden("credentials")

	root.AddCommand(
		newConnectCommand(opts),
		newDisconnectCommand(opts),
		newStatusCommand(opts),
		newSyncCommand(opts),
		newRunsCommand(opts),
		newContactsCommand(opts),
		newOpportunitiesCommand(opts),
		newWatchCommand(opts),
		newDaemonCommand(opts),
		newMCPCommand(opts, version),
		newTUICommand(opts),
		newVizCommand(opts),
		newConfigCommand(opts),
	)
	return root
}
