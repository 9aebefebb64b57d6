// ABOUTME: leadsync configuration: defaults, JSON file, .env and LEADSYNC_* overrides
// ABOUTME: Loaded once per command and validated before anything is opened
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/harperreed/leadsync/gateway"
	"github.com/harperreed/leadsync/kvstore"
	"github.com/harperreed/leadsync/lock"
	"github.com/harperreed/leadsync/logging"
	"github.com/harperreed/leadsync/models"
)

const AppName = "leadsync"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendCharm  = "charm"
)

// DefaultSyncIntervalMinutes is the daemon's auto-sync period.
const DefaultSyncIntervalMinutes = 15

type Config struct {
	OwnerUserID string        `json:"owner_user_id" validate:"required"`
	Store       StoreConfig   `json:"store"`
	Gateway     GatewayConfig `json:"gateway"`
	Sync        SyncConfig    `json:"sync"`
	Redis       RedisConfig   `json:"redis"`
	Log         LogConfig     `json:"log"`

	path string
}

type StoreConfig struct {
	Backend   string `json:"backend" validate:"oneof=sqlite badger charm"`
	Path      string `json:"path" validate:"required"`
	CharmHost string `json:"charm_host,omitempty"`
	// CharmAutoSync pushes every batch to the charm server as it commits.
	CharmAutoSync bool `json:"charm_auto_sync"`
}

type GatewayConfig struct {
	BaseURL           string `json:"base_url" validate:"required,url"`
	APIVersion        string `json:"api_version,omitempty"`
	LocationID        string `json:"location_id,omitempty"`
	TimeoutSeconds    int    `json:"timeout_seconds" validate:"gte=1"`
	RequestsPerMinute int    `json:"requests_per_minute" validate:"gte=0"`
	PageSize          int    `json:"page_size" validate:"gte=1,lte=100"`
}

type SyncConfig struct {
	Contacts        bool `json:"contacts"`
	Opportunities   bool `json:"opportunities"`
	Pipelines       bool `json:"pipelines"`
	BatchSize       int  `json:"batch_size" validate:"gte=1,lte=500"`
	IntervalMinutes int  `json:"interval_minutes" validate:"gte=1"`
}

// RedisConfig is optional. When Addr is empty the change feed and the
// owner lock stay in-process.
type RedisConfig struct {
	Addr           string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	Password       string `json:"password,omitempty"`
	DB             int    `json:"db" validate:"gte=0"`
	LockTTLSeconds int    `json:"lock_ttl_seconds" validate:"gte=0"`
}

type LogConfig struct {
	Format string `json:"format" validate:"oneof=console json"`
	Debug  bool   `json:"debug"`
	File   string `json:"file,omitempty"`
}

// Dir is where config.json and credentials.json live.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DataDir is where local stores live.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

func DefaultDBPath() string {
	return filepath.Join(DataDir(), AppName+".db")
}

func defaultOwner() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

// Default returns a config with every field set to its default.
func Default() *Config {
	return &Config{
		OwnerUserID: defaultOwner(),
		Store: StoreConfig{
			Backend:       BackendSQLite,
			Path:          DefaultDBPath(),
			CharmHost:     kvstore.DefaultCharmHost,
			CharmAutoSync: true,
		},
		Gateway: GatewayConfig{
			BaseURL:           gateway.DefaultBaseURL,
			APIVersion:        gateway.DefaultAPIVersion,
			TimeoutSeconds:    int(gateway.DefaultTimeout / time.Second),
			RequestsPerMinute: gateway.DefaultRequestsPerMinute,
			PageSize:          gateway.DefaultPageSize,
		},
		Sync: SyncConfig{
			Contacts:        true,
			Opportunities:   true,
			Pipelines:       false,
			BatchSize:       models.DefaultBatchSize,
			IntervalMinutes: DefaultSyncIntervalMinutes,
		},
		Redis: RedisConfig{
			LockTTLSeconds: int(lock.DefaultTTL / time.Second),
		},
		Log: LogConfig{
			Format: logging.FormatConsole,
		},
	}
}

// Load reads the config at path (DefaultPath when empty). A missing file
// yields defaults. A .env file in the working directory is loaded next,
// without replacing variables that are already set, and LEADSYNC_*
// variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"LEADSYNC_OWNER":          &cfg.OwnerUserID,
		"LEADSYNC_STORE_BACKEND":  &cfg.Store.Backend,
		"LEADSYNC_DB_PATH":        &cfg.Store.Path,
		"LEADSYNC_CHARM_HOST":     &cfg.Store.CharmHost,
		"LEADSYNC_BASE_URL":       &cfg.Gateway.BaseURL,
		"LEADSYNC_API_VERSION":    &cfg.Gateway.APIVersion,
		"LEADSYNC_LOCATION_ID":    &cfg.Gateway.LocationID,
		"LEADSYNC_REDIS_ADDR":     &cfg.Redis.Addr,
		"LEADSYNC_REDIS_PASSWORD": &cfg.Redis.Password,
		"LEADSYNC_LOG_FORMAT":     &cfg.Log.Format,
		"LEADSYNC_LOG_FILE":       &cfg.Log.File,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"LEADSYNC_TIMEOUT_SECONDS":     &cfg.Gateway.TimeoutSeconds,
		"LEADSYNC_REQUESTS_PER_MINUTE": &cfg.Gateway.RequestsPerMinute,
		"LEADSYNC_BATCH_SIZE":          &cfg.Sync.BatchSize,
		"LEADSYNC_SYNC_INTERVAL":       &cfg.Sync.IntervalMinutes,
		"LEADSYNC_REDIS_DB":            &cfg.Redis.DB,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("LEADSYNC_DEBUG"); ok {
		debug, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid LEADSYNC_DEBUG %q: %w", v, err)
		}
		cfg.Log.Debug = debug
	}
	return nil
}

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
}

// Path is the file the config was loaded from.
func (c *Config) Path() string {
	if c.path == "" {
		return DefaultPath()
	}
	return c.path
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.path = path
}

// Save writes the config back to Path.
func (c *Config) Save() error {
	path := c.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SyncOptions() models.SyncOptions {
	return models.SyncOptions{
		SyncContacts:      c.Sync.Contacts,
		SyncOpportunities: c.Sync.Opportunities,
		SyncPipelines:     c.Sync.Pipelines,
		BatchSize:         c.Sync.BatchSize,
	}
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalMinutes) * time.Minute
}

// GatewayBuilder returns a client builder carrying the gateway settings.
func (c *Config) GatewayBuilder() *gateway.ClientBuilder {
	return gateway.NewClientBuilder().
		SetBaseURL(c.Gateway.BaseURL).
		SetAPIVersion(c.Gateway.APIVersion).
		SetTimeout(time.Duration(c.Gateway.TimeoutSeconds) * time.Second).
		SetRequestsPerMinute(c.Gateway.RequestsPerMinute).
		SetPageSize(c.Gateway.PageSize)
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Format: c.Log.Format,
		Debug:  c.Log.Debug,
		File:   c.Log.File,
	}
}
