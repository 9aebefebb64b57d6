// ABOUTME: Foreground sync daemon built on the auto-sync scheduler
// ABOUTME: Re-arms when the config file changes and stops on SIGINT or SIGTERM
package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/jobs"
)

// minDaemonInterval is the shortest accepted schedule.
const minDaemonInterval = time.Minute

func newDaemonCommand(opts *Options) *cobra.Command {
	var interval time.Duration
	var immediate, watchConfig bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync on a schedule until interrupted",
		Long: `Run scheduled sync passes in the foreground.

The interval comes from --interval, or sync.interval_minutes in the config.
A pass is skipped when the previous one is still running. Editing the
config file re-arms the schedule with the new settings.`,
		Args: cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, app *App, _ []string) error {
			if cmd.Flags().Changed("interval") {
				if err := validateInterval(interval); err != nil {
					return err
				}
			} else {
				interval = 0
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.RequireConnection(ctx); err != nil {
				return err
			}

			d := &daemon{app: app, out: cmd.OutOrStdout(), interval: interval}
			h, err := d.arm(app.Config)
			if err != nil {
				return err
			}
			if immediate {
				h.Trigger()
			}

			if watchConfig {
				w, err := config.NewWatcher(app.Config.Path(), app.Logger)
				if err != nil {
					app.Logger.Warn("config reload disabled", zap.Error(err))
				} else {
					defer func() { _ = w.Close() }()
					go w.Run(ctx, config.DefaultDebounce, d.reload)
				}
			}

			_, _ = fmt.Fprintln(d.out, "Press Ctrl+C to stop")
			<-ctx.Done()

			_, _ = fmt.Fprintln(d.out, "\nStopping daemon...")
			app.Service.StopAutoSync(app.Session)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.DurationVar(&interval, "interval", time.Duration(config.DefaultSyncIntervalMinutes)*time.Minute, "Time between passes (minimum 1m)")
	flags.BoolVar(&immediate, "now", true, "Run a pass immediately on start")
	flags.BoolVar(&watchConfig, "watch-config", true, "Re-arm when the config file changes")
	return cmd
}

func validateInterval(d time.Duration) error {
	if d < minDaemonInterval {
		return fmt.Errorf("--interval must be at least %s, got %s", minDaemonInterval, d)
	}
	return nil
}

type daemon struct {
	mu       gosync.Mutex
	app      *App
	out      io.Writer
	interval time.Duration
}

// arm (re)starts auto-sync from cfg. A non-zero flag interval wins.
func (d *daemon) arm(cfg *config.Config) (*jobs.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	interval := d.interval
	if interval == 0 {
		interval = cfg.SyncInterval()
	}
	h, err := d.app.Service.StartAutoSyncEvery(d.app.Session, interval, cfg.SyncOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start auto-sync: %w", err)
	}
	_, _ = fmt.Fprintf(d.out, "✓ Auto-sync every %s for %s\n", interval, d.app.Session.OwnerUserID)
	return h, nil
}

func (d *daemon) reload() {
	cfg, err := config.Load(d.app.Config.Path())
	if err != nil {
		d.app.Logger.Warn("config reload failed, keeping current schedule", zap.Error(err))
		return
	}
	if _, err := d.arm(cfg); err != nil {
		d.app.Logger.Error("failed to re-arm auto-sync", zap.Error(err))
	}
}
