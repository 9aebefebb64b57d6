// ABOUTME: Tests for the sync daemon command helpers
// ABOUTME: Covers interval validation and re-arming from a changed config file
package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/config"
)

func TestValidateInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		valid    bool
	}{
		{name: "valid 1 hour", interval: "1h", valid: true},
		{name: "valid 15 minutes", interval: "15m", valid: true},
		{name: "valid 1 minute (minimum)", interval: "1m", valid: true},
		{name: "invalid 30 seconds", interval: "30s", valid: false},
		{name: "invalid zero", interval: "0s", valid: false},
		{name: "invalid negative", interval: "-5m", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := time.ParseDuration(tt.interval)
			require.NoError(t, err)

			err = validateInterval(d)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDaemonRearmsOnReload(t *testing.T) {
	opts := testOptions(t)

	app, err := NewApp(context.Background(), opts)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	var out bytes.Buffer
	d := &daemon{app: app, out: &out}

	first, err := d.arm(app.Config)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, first.Interval())
	assert.Contains(t, out.String(), "✓ Auto-sync every 15m0s for tester")

	cfg := config.Default()
	cfg.Sync.IntervalMinutes = 30
	cfg.SetPath(opts.ConfigPath)
	require.NoError(t, cfg.Save())

	d.reload()
	second := app.Session.AutoSync()
	require.NotNil(t, second)
	assert.Equal(t, 30*time.Minute, second.Interval())
	assert.True(t, first.Stopped())

	// A flag interval wins over the file.
	d.interval = 2 * time.Minute
	d.reload()
	assert.Equal(t, 2*time.Minute, app.Session.AutoSync().Interval())
	assert.True(t, second.Stopped())
}

func TestDaemonKeepsScheduleOnBadConfig(t *testing.T) {
	opts := testOptions(t)

	app, err := NewApp(context.Background(), opts)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	d := &daemon{app: app, out: &bytes.Buffer{}}
	h, err := d.arm(app.Config)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Sync.BatchSize = 0
	cfg.SetPath(opts.ConfigPath)
	require.NoError(t, cfg.Save())

	d.reload()
	assert.Same(t, h, app.Session.AutoSync())
	assert.False(t, h.Stopped())
}
