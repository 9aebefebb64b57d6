// ABOUTME: Contact CLI commands
// ABOUTME: Lists synced contacts or shows one from the local store
package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperreed/leadsync/models"
)

func newContactsCommand(opts *Options) *cobra.Command {
	var filter models.ContactFilter

	cmd := &cobra.Command{
		Use:   "contacts [key]",
		Short: "List synced contacts, or show one by key",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				c, err := app.Service.GetContact(ctx, app.Session, args[0])
				if err != nil {
					return fmt.Errorf("failed to get contact: %w", err)
				}
				if c == nil {
					return fmt.Errorf("contact not found: %s", args[0])
				}
				printContact(out, c)
				return nil
			}

			if filter.Limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", filter.Limit)
			}
			contacts, err := app.Service.GetContacts(ctx, app.Session, filter)
			if err != nil {
				return fmt.Errorf("failed to find contacts: %w", err)
			}
			printContacts(out, contacts)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Status, "status", "", "Filter by lead status")
	flags.StringVar(&filter.AssignedTo, "assigned-to", "", "Filter by assigned user id")
	flags.IntVar(&filter.Limit, "limit", models.DefaultQueryLimit, "Maximum results")
	return cmd
}

func printContacts(out io.Writer, contacts []models.Contact) {
	if len(contacts) == 0 {
		_, _ = fmt.Fprintln(out, "No contacts found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tEMAIL\tPHONE\tSTATUS\tSCORE\tVALUE\tKEY")
	_, _ = fmt.Fprintln(w, "----\t-----\t-----\t------\t-----\t-----\t---")
	for i := range contacts {
		c := &contacts[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			orDash(c.Name()), orDash(c.Email), orDash(c.Phone), orDash(c.Status),
			c.LeadScore, c.EstimatedValue.StringFixed(2), c.Key)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nTotal: %d contact(s)\n", len(contacts))
}

func printContact(out io.Writer, c *models.Contact) {
	_, _ = fmt.Fprintf(out, "%s\n", orDash(c.Name()))
	_, _ = fmt.Fprintf(out, "  Key:         %s\n", c.Key)
	_, _ = fmt.Fprintf(out, "  Email:       %s\n", orDash(c.Email))
	_, _ = fmt.Fprintf(out, "  Phone:       %s\n", orDash(c.Phone))
	if !c.Address.IsZero() {
		parts := []string{}
		for _, p := range []string{c.Address.Line, c.Address.City, c.Address.State, c.Address.PostalCode, c.Address.Country} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		_, _ = fmt.Fprintf(out, "  Address:     %s\n", strings.Join(parts, ", "))
	}
	_, _ = fmt.Fprintf(out, "  Status:      %s\n", c.Status)
	_, _ = fmt.Fprintf(out, "  Source:      %s\n", c.Source)
	_, _ = fmt.Fprintf(out, "  Assigned to: %s\n", orDash(c.AssignedTo))
	_, _ = fmt.Fprintf(out, "  Lead score:  %d\n", c.LeadScore)
	_, _ = fmt.Fprintf(out, "  Est. value:  %s\n", c.EstimatedValue.StringFixed(2))
	if len(c.Tags) > 0 {
		_, _ = fmt.Fprintf(out, "  Tags:        %s\n", strings.Join(c.Tags, ", "))
	}
	if c.LastActivityAt != nil {
		_, _ = fmt.Fprintf(out, "  Last active: %s\n", c.LastActivityAt.Local().Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintf(out, "  Synced:      %s\n", c.SyncedAt.Local().Format("2006-01-02 15:04:05"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
