package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config keys. Nested keys use viper's "." delimiter.
const (
	ConfigFile         = "config"
	DBPath             = "db.path"
	MotionBaseURL      = "motion.base_url"
	MotionAPIKey       = "motion.api_key"
	MotionWorkspaceID  = "motion.workspace_id"
	MotionTimeout      = "motion.timeout"
	SyncSchedule       = "sync.schedule"
	SyncLimit          = "sync.limit"
	SyncTimeout        = "sync.timeout"
	DisplayLimit       = "display.limit"
	DisplaySnapshot    = "display.snapshot_path"
	Timezone           = "timezone"
	LogLevel           = "log.level"
	LogPretty          = "log.pretty"
	defaultMotionBase  = "https://api.usemotion.com/v1"
	defaultDBPath      = "~/pi_productivity/data/tasks.db"
	defaultSchedule    = "*/15 * * * *"
	defaultDisplayRows = 6
)

// envBindings maps config keys to the environment variables used on the Pi.
var envBindings = map[string]string{
	ConfigFile:        "PI_PRODUCTIVITY_CONFIG",
	DBPath:            "PI_PRODUCTIVITY_DB",
	MotionBaseURL:     "MOTION_API_BASE",
	MotionAPIKey:      "MOTION_API_KEY",
	MotionWorkspaceID: "MOTION_WORKSPACE_ID",
	MotionTimeout:     "MOTION_TIMEOUT",
	SyncSchedule:      "MOTION_SYNC_SCHEDULE",
	SyncLimit:         "MOTION_SYNC_LIMIT",
	SyncTimeout:       "MOTION_SYNC_TIMEOUT",
	DisplayLimit:      "DISPLAY_LIMIT",
	DisplaySnapshot:   "PI_PRODUCTIVITY_SNAPSHOT",
	Timezone:          "TIMEZONE",
	LogLevel:          "LOG_LEVEL",
	LogPretty:         "LOG_PRETTY",
}

// DBConfig locates the local task database.
type DBConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MotionConfig holds the remote task API settings.
type MotionConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	WorkspaceID string        `mapstructure:"workspace_id" yaml:"workspace_id"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SyncConfig controls the periodic remote sync.
type SyncConfig struct {
	// Schedule is a cron expression evaluated in local time.
	Schedule string `mapstructure:"schedule" yaml:"schedule"`

	// Limit caps the number of remote tasks per sync. Zero fetches all.
	Limit int `mapstructure:"limit" yaml:"limit"`

	// Timeout bounds a whole sync pass (all pages plus the upsert).
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DisplayConfig holds settings for the display consumers.
type DisplayConfig struct {
	Limit        int    `mapstructure:"limit" yaml:"limit"`
	SnapshotPath string `mapstructure:"snapshot_path" yaml:"snapshot_path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DB       DBConfig      `mapstructure:"db" yaml:"db"`
	Motion   MotionConfig  `mapstructure:"motion" yaml:"motion"`
	Sync     SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Display  DisplayConfig `mapstructure:"display" yaml:"display"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
	Timezone string        `mapstructure:"timezone" yaml:"timezone"`

	// loc is Timezone resolved by Load.
	loc *time.Location
}

// Location returns the configured time zone. Empty or unknown zones are
// UTC.
func (c *AppConfig) Location() *time.Location {
	if c.loc == nil {
		c.loc = resolveLocation(c.Timezone)
	}
	return c.loc
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("timezone", name).Msg("unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/pi_productivity/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "pi_productivity", "config.yaml")
}

// NewFlagSet declares every configuration flag. Flags only take effect when
// they are set explicitly on the command line.
func NewFlagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.String(ConfigFile, "", "path to a YAML config file")
	f.String(DBPath, defaultDBPath, "task database path")
	f.String(MotionBaseURL, defaultMotionBase, "task API base url")
	f.String(MotionAPIKey, "", "task API key")
	f.String(MotionWorkspaceID, "", "workspace used for created tasks")
	f.Duration(MotionTimeout, 15*time.Second, "per-request timeout")
	f.String(SyncSchedule, defaultSchedule, "sync cron expression")
	f.Int(SyncLimit, 0, "max remote tasks per sync, 0 for all")
	f.Duration(SyncTimeout, 2*time.Minute, "timeout of a whole sync pass")
	f.Int(DisplayLimit, defaultDisplayRows, "rows in the compact task list")
	f.String(DisplaySnapshot, "", "write a JSON status snapshot here after each sync")
	f.String(Timezone, "UTC", "IANA time zone used for 'today'")
	f.String(LogLevel, "info", "log level")
	f.Bool(LogPretty, false, "human readable console logs")
	return f
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(DBPath, defaultDBPath)
	v.SetDefault(MotionBaseURL, defaultMotionBase)
	v.SetDefault(MotionTimeout, "15s")
	v.SetDefault(SyncSchedule, defaultSchedule)
	v.SetDefault(SyncLimit, 0)
	v.SetDefault(SyncTimeout, "2m")
	v.SetDefault(DisplayLimit, defaultDisplayRows)
	v.SetDefault(Timezone, "UTC")
	v.SetDefault(LogLevel, "info")
	v.SetDefault(LogPretty, false)
}

// Load builds the configuration from defaults, an optional YAML file, the
// environment and explicitly set flags, in increasing order of precedence.
// f may be nil.
func Load(f *flag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", key, env, err)
		}
	}
	if f != nil {
		if err := v.BindPFlags(f); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	path := v.GetString(ConfigFile)
	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(ExpandPath(path))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.DB.Path = ExpandPath(cfg.DB.Path)
	cfg.Display.SnapshotPath = ExpandPath(cfg.Display.SnapshotPath)
	cfg.Motion.APIKey = strings.TrimSpace(cfg.Motion.APIKey)
	if cfg.Display.Limit <= 0 {
		cfg.Display.Limit = defaultDisplayRows
	}
	cfg.loc = resolveLocation(cfg.Timezone)

	return cfg, nil
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(c LogConfig) error {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", c.Level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
