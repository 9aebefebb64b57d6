// ABOUTME: Visualization CLI commands
// ABOUTME: Renders the pipeline graph and the text dashboard
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/viz"
)

// dashboardLimit bounds the documents read to build a view.
const dashboardLimit = 1000

func newVizCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Visualize synced data",
	}
	cmd.AddCommand(newVizPipelinesCommand(opts), newVizDashboardCommand(opts))
	return cmd
}

func newVizPipelinesCommand(opts *Options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Graph pipelines, their stages and opportunity totals",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			pipelines, err := app.Service.GetPipelines(ctx, app.Session)
			if err != nil {
				return fmt.Errorf("failed to load pipelines: %w", err)
			}
			opps, err := app.Service.GetOpportunities(ctx, app.Session, models.OpportunityFilter{Limit: dashboardLimit})
			if err != nil {
				return fmt.Errorf("failed to load opportunities: %w", err)
			}

			dot, err := viz.GeneratePipelineGraph(ctx, pipelines, opps)
			if err != nil {
				return fmt.Errorf("failed to generate graph: %w", err)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(dot), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Graph written to %s\n", output)
				return nil
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), dot)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newVizDashboardCommand(opts *Options) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the lead and pipeline dashboard",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			status := app.Service.GetStatus(ctx, app.Session)

			contacts, err := app.Service.GetContacts(ctx, app.Session, models.ContactFilter{Limit: dashboardLimit})
			if err != nil {
				return fmt.Errorf("failed to load contacts: %w", err)
			}
			opps, err := app.Service.GetOpportunities(ctx, app.Session, models.OpportunityFilter{Limit: dashboardLimit})
			if err != nil {
				return fmt.Errorf("failed to load opportunities: %w", err)
			}
			pipelines, err := app.Service.GetPipelines(ctx, app.Session)
			if err != nil {
				return fmt.Errorf("failed to load pipelines: %w", err)
			}

			stats := viz.BuildDashboardStats(status, contacts, opps, pipelines, time.Now(), top)
			_, _ = fmt.Fprint(cmd.OutOrStdout(), viz.RenderDashboard(stats))
			return nil
		}),
	}

	cmd.Flags().IntVar(&top, "top", 5, "Number of top leads to list")
	return cmd
}
