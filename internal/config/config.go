package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultCredentialsURL is the spreadsheet export the deck has always checked logins against.
const DefaultCredentialsURL = "https://docs.google.com/spreadsheets/d/1_wL80AHDqwvcSKFxG7ouoVzMszYQqbsWanjat1o7jFE/export?format=csv"

// Config holds all server settings
type Config struct {
	Server      ServerConfig      `toml:"server"`
	TLS         TLSConfig         `toml:"tls"`
	Credentials CredentialsConfig `toml:"credentials"`
	Session     SessionConfig     `toml:"session"`
	Pitch       PitchConfig       `toml:"pitch"`
	Events      EventsConfig      `toml:"events"`
	Database    DatabaseConfig    `toml:"database"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Log         LogConfig         `toml:"log"`
}

type ServerConfig struct {
	Host            string   `toml:"host"`             // DECK_HOST
	Port            string   `toml:"port"`             // DECK_PORT
	ShutdownTimeout Duration `toml:"shutdown_timeout"` // DECK_SHUTDOWN_TIMEOUT
	AllowedOrigins  []string `toml:"allowed_origins"`  // websocket origins, empty = same host only
}

type TLSConfig struct {
	Enabled    bool   `toml:"enabled"`     // DECK_TLS_ENABLED
	CertFile   string `toml:"cert_file"`   // DECK_TLS_CERT_FILE
	KeyFile    string `toml:"key_file"`    // DECK_TLS_KEY_FILE
	MinVersion string `toml:"min_version"` // DECK_TLS_MIN_VERSION
}

type CredentialsConfig struct {
	URL          string   `toml:"url"`            // DECK_CREDENTIALS_URL
	FetchTimeout Duration `toml:"fetch_timeout"`  // DECK_CREDENTIALS_TIMEOUT
	MaxBodyBytes int64    `toml:"max_body_bytes"` // DECK_CREDENTIALS_MAX_BYTES
}

type SessionConfig struct {
	LogoutDelay Duration `toml:"logout_delay"` // DECK_LOGOUT_DELAY
}

type PitchConfig struct {
	Model   string   `toml:"model"`   // DECK_PITCH_MODEL
	Timeout Duration `toml:"timeout"` // DECK_PITCH_TIMEOUT

	// APIKey is only ever read from GEMINI_API_KEY (or API_KEY), never from the file.
	APIKey string `toml:"-"`
}

type EventsConfig struct {
	NATSURL string `toml:"nats_url"` // DECK_NATS_URL (empty = events disabled)
}

type DatabaseConfig struct {
	Path string `toml:"path"` // DECK_DB_PATH (":memory:" keeps the audit in-process)
}

type CatalogConfig struct {
	File string `toml:"file"` // DECK_SLIDES_FILE (empty = embedded deck)
}

type LogConfig struct {
	Level  string `toml:"level"`  // DECK_LOG_LEVEL
	Format string `toml:"format"` // DECK_LOG_FORMAT: json or console
}

// Duration lets TOML files use strings like "10s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ShutdownTimeout: Duration{15 * time.Second},
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		Credentials: CredentialsConfig{
			URL:          DefaultCredentialsURL,
			FetchTimeout: Duration{10 * time.Second},
			MaxBodyBytes: 1 << 20,
		},
		Session: SessionConfig{
			LogoutDelay: Duration{10 * time.Second},
		},
		Pitch: PitchConfig{
			Model:   "gemini-3-flash-preview",
			Timeout: Duration{30 * time.Second},
		},
		Database: DatabaseConfig{
			Path: ":memory:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the TOML file at path (if any) over the defaults, then applies
// environment overrides. A missing file is only an error when required is true.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) || required {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Host, "DECK_HOST")
	setString(&c.Server.Port, "DECK_PORT")
	setString(&c.TLS.CertFile, "DECK_TLS_CERT_FILE")
	setString(&c.TLS.KeyFile, "DECK_TLS_KEY_FILE")
	setString(&c.TLS.MinVersion, "DECK_TLS_MIN_VERSION")
	setString(&c.Credentials.URL, "DECK_CREDENTIALS_URL")
	setString(&c.Pitch.Model, "DECK_PITCH_MODEL")
	setString(&c.Events.NATSURL, "DECK_NATS_URL")
	setString(&c.Database.Path, "DECK_DB_PATH")
	setString(&c.Catalog.File, "DECK_SLIDES_FILE")
	setString(&c.Log.Level, "DECK_LOG_LEVEL")
	setString(&c.Log.Format, "DECK_LOG_FORMAT")

	if v := os.Getenv("DECK_TLS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DECK_TLS_ENABLED: %w", err)
		}
		c.TLS.Enabled = b
	}
	if v := os.Getenv("DECK_CREDENTIALS_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DECK_CREDENTIALS_MAX_BYTES: %w", err)
		}
		c.Credentials.MaxBodyBytes = n
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"DECK_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout},
		{"DECK_CREDENTIALS_TIMEOUT", &c.Credentials.FetchTimeout},
		{"DECK_LOGOUT_DELAY", &c.Session.LogoutDelay},
		{"DECK_PITCH_TIMEOUT", &c.Pitch.Timeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		d.dst.Duration = parsed
	}

	c.Pitch.APIKey = os.Getenv("GEMINI_API_KEY")
	if c.Pitch.APIKey == "" {
		c.Pitch.APIKey = os.Getenv("API_KEY")
	}
	return nil
}

// Validate checks that the configuration can be served
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Credentials.URL == "" {
		return fmt.Errorf("credentials url is required")
	}
	u, err := url.Parse(c.Credentials.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("credentials url must be http(s): %q", c.Credentials.URL)
	}
	if c.Credentials.FetchTimeout.Duration <= 0 {
		return fmt.Errorf("credentials fetch_timeout must be positive")
	}
	if c.Credentials.MaxBodyBytes <= 0 {
		return fmt.Errorf("credentials max_body_bytes must be positive")
	}
	if c.Session.LogoutDelay.Duration < 0 {
		return fmt.Errorf("session logout_delay must not be negative")
	}
	if c.Pitch.Model == "" {
		return fmt.Errorf("pitch model is required")
	}
	if c.Pitch.Timeout.Duration <= 0 {
		return fmt.Errorf("pitch timeout must be positive")
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls cert_file and key_file are required when tls is enabled")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
