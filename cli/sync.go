// ABOUTME: Sync commands: run one pass now and list past runs
// ABOUTME: Flags override the configured entity selection for a single pass
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/leadsync/models"
)

func newSyncCommand(opts *Options) *cobra.Command {
	var contacts, opportunities, pipelines bool
	var batchSize int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull contacts, opportunities and pipelines from the CRM now",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			if err := app.RequireConnection(ctx); err != nil {
				return err
			}

			syncOpts := app.Config.SyncOptions()
			flags := cmd.Flags()
			if flags.Changed("contacts") {
				syncOpts.SyncContacts = contacts
			}
			if flags.Changed("opportunities") {
				syncOpts.SyncOpportunities = opportunities
			}
			if flags.Changed("pipelines") {
				syncOpts.SyncPipelines = pipelines
			}
			if flags.Changed("batch-size") {
				if batchSize <= 0 {
					return fmt.Errorf("--batch-size must be positive, got %d", batchSize)
				}
				syncOpts.BatchSize = batchSize
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Syncing from CRM...")
			result := app.Service.SyncAll(ctx, app.Session, syncOpts)
			printSyncResult(out, result)

			if !result.Success {
				return errors.New("sync finished with errors")
			}
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.BoolVar(&contacts, "contacts", true, "Sync contacts")
	flags.BoolVar(&opportunities, "opportunities", true, "Sync opportunities")
	flags.BoolVar(&pipelines, "pipelines", false, "Sync pipelines and their stages")
	flags.IntVar(&batchSize, "batch-size", models.DefaultBatchSize, "Documents per committed batch")
	return cmd
}

func printSyncResult(out io.Writer, result models.SyncResult) {
	mark := "✓"
	if !result.Success {
		mark = "✗"
	}
	_, _ = fmt.Fprintf(out, "%s Sync completed at %s\n", mark, result.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(out, "  Contacts:      %d\n", result.ContactsSynced)
	_, _ = fmt.Fprintf(out, "  Opportunities: %d\n", result.OpportunitiesSynced)
	if result.PipelinesSynced > 0 {
		_, _ = fmt.Fprintf(out, "  Pipelines:     %d\n", result.PipelinesSynced)
	}
	if len(result.Errors) > 0 {
		_, _ = fmt.Fprintf(out, "  Errors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			_, _ = fmt.Fprintf(out, "    - %s\n", e)
		}
	}
}

func newRunsCommand(opts *Options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			runs, err := app.Service.ListSyncRuns(cmd.Context(), app.Session, limit)
			if err != nil {
				return fmt.Errorf("failed to list sync runs: %w", err)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum runs to show")
	return cmd
}

func printRuns(out io.Writer, runs []models.SyncRun) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No sync runs yet")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STARTED\tTRIGGER\tSTATUS\tCONTACTS\tOPPORTUNITIES\tDURATION\tERRORS")
	_, _ = fmt.Fprintln(w, "-------\t-------\t------\t--------\t-------------\t--------\t------")
	for _, r := range runs {
		errs := "-"
		if len(r.Errors) > 0 {
			errs = truncate(strings.Join(r.Errors, "; "), 60)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Trigger, r.Status, r.ContactsSynced, r.OpportunitiesSynced,
			r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond), errs)
	}
	_ = w.Flush()
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
