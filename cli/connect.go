// ABOUTME: Connection commands: connect, disconnect and status
// ABOUTME: The API key is verified against the CRM before it is cached locally
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/sync"
)

func newConnectCommand(opts *Options) *cobra.Command {
	var apiKey, location string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Verify a CRM API key and remember it",
		Long: `Verify a CRM API key and cache it for later commands.

The key is taken from --api-key, then LEADSYNC_API_KEY, and is otherwise
prompted for. Only a redacted hint of it is written to the local store.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			out := cmd.OutOrStdout()

			key, err := resolveAPIKey(apiKey, cmd.InOrStdin(), out)
			if err != nil {
				return err
			}
			if location == "" {
				location = app.Config.Gateway.LocationID
			}

			if !app.Service.Connect(cmd.Context(), app.Session, key, location) {
				return errors.New("connection failed: the CRM rejected the key or could not be reached")
			}
			if err := config.SaveCredentials(app.credentialsPath, &config.Credentials{
				APIKey:     key,
				LocationID: location,
			}); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "✓ Connected as %s (key %s)\n", app.Session.OwnerUserID, models.RedactCredential(key))
			if location != "" {
				_, _ = fmt.Fprintf(out, "  Location: %s\n", location)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "CRM API key")
	cmd.Flags().StringVar(&location, "location", "", "CRM location (sub-account) id")
	return cmd
}

// resolveAPIKey picks the key from the flag, the environment or a prompt.
// Terminal input is read without echo.
func resolveAPIKey(flagValue string, in io.Reader, out io.Writer) (string, error) {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(config.APIKeyEnv)); key != "" {
		return key, nil
	}

	_, _ = fmt.Fprint(out, "API key: ")

	var line string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
		line = string(raw)
	} else {
		var err error
		line, err = bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read API key: %w", err)
		}
	}

	key := strings.TrimSpace(line)
	if key == "" {
		return "", errors.New("an API key is required")
	}
	return key, nil
}

func newDisconnectCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the API key; synced data stays in the local store",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			app.Service.Disconnect(cmd.Context(), app.Session)
			if err := config.DeleteCredentials(app.credentialsPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Disconnected. Synced data is kept.")
			return nil
		}),
	}
}

func newStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connection and local store summary",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			status := app.Service.GetStatus(cmd.Context(), app.Session)
			printStatus(cmd.OutOrStdout(), app.Session.OwnerUserID, status, time.Now())
			return nil
		}),
	}
}

func printStatus(out io.Writer, owner string, status sync.Status, now time.Time) {
	state := "✗ not connected"
	if status.IsConnected {
		state = "✓ connected"
	}
	_, _ = fmt.Fprintf(out, "Owner:         %s\n", owner)
	_, _ = fmt.Fprintf(out, "Connection:    %s\n", state)
	_, _ = fmt.Fprintf(out, "Last sync:     %s\n", formatLastSync(status.LastSync, now))
	_, _ = fmt.Fprintf(out, "Contacts:      %d\n", status.ContactCount)
	_, _ = fmt.Fprintf(out, "Opportunities: %d\n", status.OpportunityCount)
}

func formatLastSync(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format("2006-01-02 15:04:05"), now.Sub(*t).Round(time.Second))
}
