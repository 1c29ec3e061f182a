package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
		// AllowedOrigin is the frontend origin permitted to open websocket
		// upgrades; empty restricts upgrades to same-host requests.
		AllowedOrigin string `yaml:"allowed_origin"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		Enabled      bool   `yaml:"enabled"`
	} `yaml:"email"`

	Realtime RealtimeConfig `yaml:"realtime"`
}

// RealtimeConfig tunes the live update broker.
type RealtimeConfig struct {
	DedupWindow     time.Duration `yaml:"dedup_window"`      // duplicate suppression span
	ReleaseGrace    time.Duration `yaml:"release_grace"`     // delay before tearing down an unused subscription
	CacheCap        int           `yaml:"cache_cap"`         // max entries per entity type
	BackoffBase     time.Duration `yaml:"backoff_base"`      // first reconnect delay
	BackoffCap      time.Duration `yaml:"backoff_cap"`       // max reconnect delay
	StaleThreshold  time.Duration `yaml:"stale_threshold"`   // disconnect length that forces a backfill
	SessionInboxCap int           `yaml:"session_inbox_cap"` // buffered raw events per session
	SnapshotLimit   int           `yaml:"snapshot_limit"`    // max rows per backfill query
	Retention       time.Duration `yaml:"retention"`         // read notifications older than this are pruned
}

// UnmarshalYAML parses duration fields from strings like "2s", which
// yaml.v2 cannot decode into time.Duration on its own.
func (rc *RealtimeConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		DedupWindow     string `yaml:"dedup_window"`
		ReleaseGrace    string `yaml:"release_grace"`
		CacheCap        int    `yaml:"cache_cap"`
		BackoffBase     string `yaml:"backoff_base"`
		BackoffCap      string `yaml:"backoff_cap"`
		StaleThreshold  string `yaml:"stale_threshold"`
		SessionInboxCap int    `yaml:"session_inbox_cap"`
		SnapshotLimit   int    `yaml:"snapshot_limit"`
		Retention       string `yaml:"retention"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parse := func(s string, dst *time.Duration) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	rc.CacheCap = raw.CacheCap
	rc.SessionInboxCap = raw.SessionInboxCap
	rc.SnapshotLimit = raw.SnapshotLimit
	for _, item := range []struct {
		s   string
		dst *time.Duration
	}{
		{raw.DedupWindow, &rc.DedupWindow},
		{raw.ReleaseGrace, &rc.ReleaseGrace},
		{raw.BackoffBase, &rc.BackoffBase},
		{raw.BackoffCap, &rc.BackoffCap},
		{raw.StaleThreshold, &rc.StaleThreshold},
		{raw.Retention, &rc.Retention},
	} {
		if err := parse(item.s, item.dst); err != nil {
			return err
		}
	}
	return nil
}

// Defaults applied when the yaml block leaves fields zero.
func (rc *RealtimeConfig) applyDefaults() {
	if rc.DedupWindow <= 0 {
		rc.DedupWindow = 2 * time.Second
	}
	if rc.ReleaseGrace <= 0 {
		rc.ReleaseGrace = 5 * time.Second
	}
	if rc.CacheCap <= 0 {
		rc.CacheCap = 500
	}
	if rc.BackoffBase <= 0 {
		rc.BackoffBase = time.Second
	}
	if rc.BackoffCap <= 0 {
		rc.BackoffCap = 30 * time.Second
	}
	if rc.StaleThreshold <= 0 {
		rc.StaleThreshold = 3 * time.Second
	}
	if rc.SessionInboxCap <= 0 {
		rc.SessionInboxCap = 256
	}
	if rc.SnapshotLimit <= 0 {
		rc.SnapshotLimit = 500
	}
	if rc.Retention <= 0 {
		rc.Retention = 30 * 24 * time.Hour
	}
}

var AppConfig *Config

// LoadConfig reads config/config.yaml, or environment variables when
// DATABASE_URL is set (the test/deploy path).
func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		cfg.Realtime.applyDefaults()
		AppConfig = &cfg
		return
	}

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.Server.AllowedOrigin = os.Getenv("ALLOWED_ORIGIN")
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = 60

	cfg.Realtime.applyDefaults()
	AppConfig = &cfg
}

// GetConfig returns the loaded configuration.
func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
