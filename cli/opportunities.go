// ABOUTME: Opportunity CLI commands
// ABOUTME: Lists synced opportunities with their pipeline stage names
package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperreed/leadsync/models"
)

func newOpportunitiesCommand(opts *Options) *cobra.Command {
	var filter models.OpportunityFilter

	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"opps"},
		Short:   "List synced opportunities",
		Args:    cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			if filter.Limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", filter.Limit)
			}

			opps, err := app.Service.GetOpportunities(ctx, app.Session, filter)
			if err != nil {
				return fmt.Errorf("failed to find opportunities: %w", err)
			}
			pipelines, err := app.Service.GetPipelines(ctx, app.Session)
			if err != nil {
				return fmt.Errorf("failed to load pipelines: %w", err)
			}
			printOpportunities(cmd.OutOrStdout(), opps, pipelines)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Status, "status", "", "Filter by status (open, won, lost, abandoned)")
	flags.StringVar(&filter.AssignedTo, "assigned-to", "", "Filter by assigned user id")
	flags.StringVar(&filter.PipelineID, "pipeline", "", "Filter by pipeline id")
	flags.IntVar(&filter.Limit, "limit", models.DefaultQueryLimit, "Maximum results")
	return cmd
}

func printOpportunities(out io.Writer, opps []models.Opportunity, pipelines []models.Pipeline) {
	if len(opps) == 0 {
		_, _ = fmt.Fprintln(out, "No opportunities found")
		return
	}

	byID := make(map[string]*models.Pipeline, len(pipelines))
	for i := range pipelines {
		byID[pipelines[i].ExternalID] = &pipelines[i]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPIPELINE\tSTAGE\tSTATUS\tVALUE\tKEY")
	_, _ = fmt.Fprintln(w, "----\t--------\t-----\t------\t-----\t---")
	for i := range opps {
		o := &opps[i]
		pipeline, stage := o.PipelineID, o.StageID
		if p, ok := byID[o.PipelineID]; ok {
			pipeline = p.Name
			stage = p.StageName(o.StageID)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			orDash(o.Name), orDash(pipeline), orDash(stage), o.Status, o.MonetaryValue.StringFixed(2), o.Key)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nTotal: %d opportunit(ies), value %s\n", len(opps), models.SumMonetaryValue(opps).StringFixed(2))
}
