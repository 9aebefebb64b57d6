// ABOUTME: Shared runtime for CLI commands: config, logger, store and sync service
// ABOUTME: Picks the store backend and optional Redis feed and lock from config
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/harperreed/leadsync/changefeed"
	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/kvstore"
	"github.com/harperreed/leadsync/lock"
	"github.com/harperreed/leadsync/logging"
	"github.com/harperreed/leadsync/sync"
)

// Store is a sync.Store that owns resources.
type Store interface {
	sync.Store
	io.Closer
}

// App is everything a command needs. Close releases it.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   Store
	Service *sync.Service
	Session *sync.Session

	credentialsPath string
	redis           *redis.Client
}

// Options carry the global flags.
type Options struct {
	ConfigPath      string
	DBPath          string
	CredentialsPath string
	Debug           bool
}

func NewApp(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.Store.Path = opts.DBPath
	}
	if opts.Debug {
		cfg.Log.Debug = true
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		Config:          cfg,
		Logger:          logger,
		Session:         sync.NewSession(cfg.OwnerUserID),
		credentialsPath: opts.CredentialsPath,
	}

	var feed changefeed.Feed
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		rf, err := changefeed.NewRedis(ctx, app.redis, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		feed = rf
		locker = lock.NewRedis(app.redis, cfg.LockTTL(), logger)
	}

	store, err := openStore(cfg, feed, logger)
	if err != nil {
		if feed != nil {
			_ = feed.Close()
		}
		_ = app.Close()
		return nil, err
	}
	app.Store = store

	app.Service = sync.NewService(store,
		sync.HTTPGatewayFactory(cfg.GatewayBuilder().SetLogger(logger)),
		sync.WithLocker(locker),
		sync.WithLogger(logger),
	)
	return app, nil
}

func openStore(cfg *config.Config, feed changefeed.Feed, logger *zap.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		database, err := db.OpenDatabase(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db.NewStore(database, feed, logger), nil

	case config.BackendBadger:
		engine, err := kvstore.OpenBadger(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return kvstore.NewStore(engine, feed, logger), nil

	case config.BackendCharm:
		engine, err := kvstore.OpenCharm(cfg.Store.CharmHost, cfg.Store.CharmAutoSync)
		if err != nil {
			return nil, fmt.Errorf("failed to open charm store: %w", err)
		}
		return kvstore.NewStore(engine, feed, logger), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// Restore reconnects the session with cached credentials. It reports false
// when there are none or the CRM rejects them.
func (a *App) Restore(ctx context.Context) (bool, error) {
	creds, err := config.LoadCredentials(a.credentialsPath)
	if err != nil {
		return false, err
	}
	if creds == nil || creds.APIKey == "" {
		return false, nil
	}

	location := creds.LocationID
	if location == "" {
		location = a.Config.Gateway.LocationID
	}
	return a.Service.Connect(ctx, a.Session, creds.APIKey, location), nil
}

// RequireConnection restores the session or explains how to connect.
func (a *App) RequireConnection(ctx context.Context) error {
	ok, err := a.Restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not connected to the CRM: run 'leadsync connect' first")
	}
	return nil
}

func (a *App) Close() error {
	if a.Session != nil && a.Service != nil {
		a.Service.StopAutoSync(a.Session)
		a.Service.Scheduler().StopAll()
	}
	var firstErr error
	if a.Store != nil {
		firstErr = a.Store.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return firstErr
}
