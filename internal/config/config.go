package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the feed endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// AppleCalendarConfig controls the macOS Calendar mirror side channel.
type AppleCalendarConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// TimeoutSec bounds one osascript invocation.
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the feed endpoints.
	Listen string `yaml:"listen" json:"listen"`

	// FeedDir is the directory holding one .ics document per feed.
	FeedDir string `yaml:"feed_dir" json:"feed_dir"`

	// CalendarName is the display name of the combined calendar.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// Combined / PerSource toggle the combined feed and the per-source
	// feeds. Both default to true; nil means unset.
	Combined  *bool `yaml:"combined,omitempty" json:"combined,omitempty"`
	PerSource *bool `yaml:"per_source,omitempty" json:"per_source,omitempty"`

	// RetentionDays is how long completed events stay before cleanup.
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// MaxCompletedEvents caps completed events per store; the oldest are
	// evicted first once the cap is exceeded.
	MaxCompletedEvents int `yaml:"max_completed_events" json:"max_completed_events"`

	// CleanupCron is a cron-style schedule for the retention sweep.
	CleanupCron string `yaml:"cleanup_cron" json:"cleanup_cron"`

	// CheckinOffsets are the default follow-up offsets attached to launch
	// events, e.g. ["24h", "48h", "7d"].
	CheckinOffsets []string `yaml:"checkin_offsets" json:"checkin_offsets"`

	// Aggregate folds task completions into one rolling daily summary
	// event per source. Defaults to true; nil means unset.
	Aggregate *bool `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Token, if non-empty, additionally allows bearer-token access.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`

	AppleCalendar AppleCalendarConfig `yaml:"apple_calendar" json:"apple_calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             "127.0.0.1:8080",
		FeedDir:            "./feeds",
		CalendarName:       "Agent Activity",
		Combined:           boolPtr(true),
		PerSource:          boolPtr(true),
		RetentionDays:      90,
		MaxCompletedEvents: 100,
		CleanupCron:        "0 3 * * *",
		CheckinOffsets:     []string{},
		Aggregate:          boolPtr(true),
		BasicAuth:          nil,
		AppleCalendar:      AppleCalendarConfig{Enabled: false, TimeoutSec: 10},
	}
}

// CombinedEnabled resolves the Combined toggle with its default.
func (c *Config) CombinedEnabled() bool { return c.Combined == nil || *c.Combined }

// PerSourceEnabled resolves the PerSource toggle with its default.
func (c *Config) PerSourceEnabled() bool { return c.PerSource == nil || *c.PerSource }

// AggregateEnabled resolves the Aggregate toggle with its default.
func (c *Config) AggregateEnabled() bool { return c.Aggregate == nil || *c.Aggregate }

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.FeedDir == "" {
		c.FeedDir = "./feeds"
	}
	if c.CalendarName == "" {
		c.CalendarName = "Agent Activity"
	}
	if c.Combined == nil {
		c.Combined = boolPtr(true)
	}
	if c.PerSource == nil {
		c.PerSource = boolPtr(true)
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	if c.MaxCompletedEvents <= 0 {
		c.MaxCompletedEvents = 100
	}
	if c.CleanupCron == "" {
		c.CleanupCron = "0 3 * * *"
	}
	if c.CheckinOffsets == nil {
		c.CheckinOffsets = []string{}
	}
	if c.Aggregate == nil {
		c.Aggregate = boolPtr(true)
	}
	if c.AppleCalendar.TimeoutSec <= 0 {
		c.AppleCalendar.TimeoutSec = 10
	}
}

// Merge layers override on top of base and returns a new Config. Every
// zero-valued (or nil) override field inherits the base's value; slices
// replace wholesale rather than concatenating; nested sections merge
// recursively. Neither input is mutated.
func Merge(base, override *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	if override == nil {
		override = &Config{}
	}

	out := *base

	if override.Listen != "" {
		out.Listen = override.Listen
	}
	if override.FeedDir != "" {
		out.FeedDir = override.FeedDir
	}
	if override.CalendarName != "" {
		out.CalendarName = override.CalendarName
	}
	if override.Combined != nil {
		out.Combined = boolPtr(*override.Combined)
	}
	if override.PerSource != nil {
		out.PerSource = boolPtr(*override.PerSource)
	}
	if override.RetentionDays != 0 {
		out.RetentionDays = override.RetentionDays
	}
	if override.MaxCompletedEvents != 0 {
		out.MaxCompletedEvents = override.MaxCompletedEvents
	}
	if override.CleanupCron != "" {
		out.CleanupCron = override.CleanupCron
	}
	if override.CheckinOffsets != nil {
		out.CheckinOffsets = append([]string(nil), override.CheckinOffsets...)
	}
	if override.Aggregate != nil {
		out.Aggregate = boolPtr(*override.Aggregate)
	}
	if override.BasicAuth != nil {
		merged := *override.BasicAuth
		if base.BasicAuth != nil {
			if merged.Username == "" {
				merged.Username = base.BasicAuth.Username
			}
			if merged.Password == "" {
				merged.Password = base.BasicAuth.Password
			}
		}
		out.BasicAuth = &merged
	} else if base.BasicAuth != nil {
		copied := *base.BasicAuth
		out.BasicAuth = &copied
	}
	if override.Token != "" {
		out.Token = override.Token
	}
	if override.AppleCalendar.Enabled {
		out.AppleCalendar.Enabled = true
	}
	if override.AppleCalendar.TimeoutSec != 0 {
		out.AppleCalendar.TimeoutSec = override.AppleCalendar.TimeoutSec
	}

	return &out
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory if needed,
//     write a default config with 0600 perms, and return the default.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".agentcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up the temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func boolPtr(v bool) *bool { return &v }
