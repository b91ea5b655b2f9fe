// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"intrawatch/internal/errors"
)

const (
	DefaultPath     = "config.json"
	DefaultInterval = 30 * time.Minute

	BackendFile   = "file"
	BackendBadger = "badger"
)

var autologinPattern = regexp.MustCompile(`^https://intra\.epitech\.eu/auth-[a-f0-9]{40}$`)

type Config struct {
	Autologin string `json:"autologin"`

	Webhook struct {
		URL      string `json:"url"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	} `json:"webhook"`

	IntervalMs      int64 `json:"interval_of_check"` // milliseconds between cycles
	DownloadContent bool  `json:"download_file"`
	DiffTextContent bool  `json:"diff_text_content"`
	NotifyEnabled   bool  `json:"notify_enabled"`
	AnnounceSeed    bool  `json:"announce_seed"`

	DataDir string `json:"data_dir"`

	Snapshot struct {
		Backend string `json:"backend"` // file, badger
	} `json:"snapshot"`

	Status struct {
		Addr string `json:"addr"`
	} `json:"status"`

	LogLevel string `json:"log_level"` // debug, info, warn, error
	LogFile  string `json:"log_file"`
	Debug    bool   `json:"debug"`
}

// Path resolves the config file location: the explicit flag value, then
// INTRAWATCH_CONFIG, then config.json in the working directory.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("INTRAWATCH_CONFIG"); env != "" {
		return env
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func Default() *Config {
	c := &Config{
		DiffTextContent: true,
		NotifyEnabled:   true,
	}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.IntervalMs == 0 {
		c.IntervalMs = DefaultInterval.Milliseconds()
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = BackendFile
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
		if c.Debug {
			c.LogLevel = "debug"
		}
	}
	if c.Webhook.Username == "" {
		c.Webhook.Username = "Epitech Intranet"
	}
}

func (c *Config) Validate() error {
	if c.IntervalMs <= 0 {
		return errors.ValidationError("interval_of_check must be greater than zero", c.IntervalMs)
	}
	switch c.Snapshot.Backend {
	case BackendFile, BackendBadger:
	default:
		return errors.ValidationError("unknown snapshot backend", c.Snapshot.Backend)
	}
	if c.NotifyEnabled && c.Webhook.URL == "" {
		return errors.ValidationError("webhook.url is required when notify_enabled is set", nil)
	}
	return nil
}

// Interval is the pause between the end of one cycle and the start of the next.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// ValidAutologin reports whether link looks like an intranet autologin URL.
func ValidAutologin(link string) bool {
	return autologinPattern.MatchString(link)
}
