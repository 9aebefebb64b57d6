// ABOUTME: Live view of the local store through the subscription API
// ABOUTME: Prints a line for the initial result and for every change until interrupted
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/viz"
)

func newWatchCommand(opts *Options) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:       "watch contacts|opportunities",
		Short:     "Print updates as synced documents change",
		Long:      "Subscribe to the local store and print a summary each time the result set changes. Run 'leadsync daemon' or 'leadsync sync' elsewhere to produce changes.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"contacts", "opportunities"},
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := &linePrinter{out: cmd.OutOrStdout(), now: time.Now}
			var unsubscribe func()
			switch args[0] {
			case "contacts":
				unsubscribe = app.Service.SubscribeToContacts(ctx, app.Session,
					models.ContactFilter{Status: status, Limit: dashboardLimit},
					func(cs []models.Contact) { p.contacts(cs) })
			case "opportunities":
				unsubscribe = app.Service.SubscribeToOpportunities(ctx, app.Session,
					models.OpportunityFilter{Status: status, Limit: dashboardLimit},
					func(opps []models.Opportunity) { p.opportunities(opps) })
			}
			defer unsubscribe()

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for %s. Press Ctrl+C to stop.\n", args[0], app.Session.OwnerUserID)
			<-ctx.Done()
			return ignoreCanceled(ctx)
		}),
	}

	cmd.Flags().StringVar(&status, "status", "", "Only count documents with this status")
	return cmd
}

// linePrinter serializes subscription output.
type linePrinter struct {
	mu  gosync.Mutex
	out io.Writer
	now func() time.Time
}

func (p *linePrinter) contacts(cs []models.Contact) {
	hot := 0
	for i := range cs {
		if cs[i].LeadScore >= viz.HotScore {
			hot++
		}
	}
	p.printf("%d contacts (%d hot)", len(cs), hot)
}

func (p *linePrinter) opportunities(opps []models.Opportunity) {
	p.printf("%d opportunities worth %s", len(opps), models.SumMonetaryValue(opps).StringFixed(2))
}

func (p *linePrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "[%s] "+format+"\n", append([]any{p.now().Format("15:04:05")}, args...)...)
}

// ignoreCanceled treats an interrupted wait as a clean exit.
func ignoreCanceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
