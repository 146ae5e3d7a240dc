package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// AppName is used for config, cache and data directory names
const AppName = "threadwalk"

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Crawl      CrawlConfig      `toml:"crawl"`
	Navigation NavigationConfig `toml:"navigation"`
	Timing     TimingConfig     `toml:"timing"`
	Notify     NotifyConfig     `toml:"notify"`
	Browser    BrowserConfig    `toml:"browser"`
	Log        LogConfig        `toml:"log"`
}

type CrawlConfig struct {
	Interval         Duration `toml:"interval"`
	RetweetThreshold int      `toml:"retweet_threshold"`
	ReplyThreshold   int      `toml:"reply_threshold"`
	SavedTweetsLimit int      `toml:"saved_tweets_limit"`
	PacingDelay      Duration `toml:"pacing_delay"`
}

type NavigationConfig struct {
	HomeURL     string `toml:"home_url"`
	ExploreURL  string `toml:"explore_url"`
	FallbackURL string `toml:"fallback_url"`
	OperatorURL string `toml:"operator_url"`
	// OnlyHome seeds the persisted isOnlyHome flag on first run.
	OnlyHome bool `toml:"only_home"`
}

type TimingConfig struct {
	PollInterval        Duration `toml:"poll_interval"`
	ElementWait         Duration `toml:"element_wait"`
	ReloadWait          Duration `toml:"reload_wait"`
	MaxRetry            int      `toml:"max_retry"`
	ScrollInterval      Duration `toml:"scroll_interval"`
	MaxFailScrollCount  int      `toml:"max_fail_scroll_count"`
	TabScrollSteps      int      `toml:"tab_scroll_steps"`
	TabScrollWait       Duration `toml:"tab_scroll_wait"`
	LockedRedirectDelay Duration `toml:"locked_redirect_delay"`
	LockedCheckInterval Duration `toml:"locked_check_interval"`
	WatchdogInterval    Duration `toml:"watchdog_interval"`
}

type NotifyConfig struct {
	WebhookURL string `toml:"webhook_url"`
	Comment    string `toml:"comment"`
	Mention    string `toml:"mention"`
	// PerMinute caps webhook posts; Discord rejects bursts.
	PerMinute int `toml:"per_minute"`
}

type BrowserConfig struct {
	Headless    bool   `toml:"headless"`
	UserDataDir string `toml:"user_data_dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Crawl: CrawlConfig{
			Interval:         Duration(2 * time.Second),
			RetweetThreshold: 100,
			ReplyThreshold:   10,
			SavedTweetsLimit: 500,
			PacingDelay:      Duration(200 * time.Millisecond),
		},
		Navigation: NavigationConfig{
			HomeURL:     "https://x.com/home",
			ExploreURL:  "https://x.com/explore/tabs/trending",
			FallbackURL: "https://x.com/home",
			OperatorURL: "https://x.com/i/threadwalk/",
		},
		Timing: TimingConfig{
			PollInterval:        Duration(500 * time.Millisecond),
			ElementWait:         Duration(30 * time.Second),
			ReloadWait:          Duration(60 * time.Second),
			MaxRetry:            3,
			ScrollInterval:      Duration(1500 * time.Millisecond),
			MaxFailScrollCount:  10,
			TabScrollSteps:      10,
			TabScrollWait:       Duration(2 * time.Second),
			LockedRedirectDelay: Duration(3 * time.Hour),
			LockedCheckInterval: Duration(10 * time.Minute),
			WatchdogInterval:    Duration(time.Second),
		},
		Notify: NotifyConfig{
			Mention:   "@everyone",
			PerMinute: 20,
		},
		Browser: BrowserConfig{
			Headless: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory.
// Archive exports are written below it.
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}

// ExportDir returns the directory archive exports are written to
func ExportDir() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "exports"), nil
}

// StorePath returns the path of the key/value database
func StorePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store.db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from the given path. Keys missing from the file keep
// their default values. Environment overrides are applied last.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadOrCreate reads config from path, or from the default location when path
// is empty. A missing file is replaced by the defaults, which are written out;
// created reports whether that happened.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if path == "" {
		if path, err = ConfigPath(); err != nil {
			return nil, false, err
		}
	}

	cfg, err = LoadFile(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	cfg = Default()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, false, err
	}
	if err := cfg.SaveFile(path); err != nil {
		return nil, false, err
	}
	cfg.ApplyEnv()
	return cfg, true, nil
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// ApplyEnv overrides webhook, headless and log settings from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("THREADWALK_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("THREADWALK_WEBHOOK_COMMENT"); v != "" {
		c.Notify.Comment = v
	}
	if v := os.Getenv("THREADWALK_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	return c.SaveFile(path)
}

// SaveFile writes config to the given path
func (c *Config) SaveFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
