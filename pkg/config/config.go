package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
)

// Config captures module-level configuration knobs. Feature packages
// (subscription, relay, eventstore, webpush, etc.) pull from these nested structs.
type Config struct {
	Push         PushConfig         `mapstructure:"push" json:"push"`
	Relay        RelayConfig        `mapstructure:"relay" json:"relay"`
	Store        StoreConfig        `mapstructure:"store" json:"store"`
	Scanner      ScannerConfig      `mapstructure:"scanner" json:"scanner"`
	Registration RegistrationConfig `mapstructure:"registration" json:"registration"`
	Server       ServerConfig       `mapstructure:"server" json:"server"`
	Localization LocalizationConfig `mapstructure:"localization" json:"localization"`
	Logging      LoggingConfig      `mapstructure:"logging" json:"logging"`
}

// PushConfig holds the deploy-time VAPID key and worker readiness bound.
type PushConfig struct {
	VapidPublicKey string        `mapstructure:"vapid_public_key" json:"vapid_public_key"`
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout" json:"ready_timeout"`
}

// RelayConfig shapes notifications raised for incoming pushes.
type RelayConfig struct {
	Icon        string `mapstructure:"icon" json:"icon"`
	Badge       string `mapstructure:"badge" json:"badge"`
	ClickRoute  string `mapstructure:"click_route" json:"click_route"`
	FocusPolicy string `mapstructure:"focus_policy" json:"focus_policy"`
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver" json:"driver"`
	Path          string        `mapstructure:"path" json:"path"`
	DSN           string        `mapstructure:"dsn" json:"dsn"`
	RedisAddr     string        `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" json:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" json:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix" json:"redis_prefix"`
	ClearRetries  int           `mapstructure:"clear_retries" json:"clear_retries"`
	ClearBackoff  time.Duration `mapstructure:"clear_backoff" json:"clear_backoff"`
	// EncryptionKey is a base64 32-byte key sealing subscription key material at rest.
	EncryptionKey string `mapstructure:"encryption_key" json:"encryption_key"`
}

// ScannerConfig mirrors the QR scanner constraints.
type ScannerConfig struct {
	Source     string `mapstructure:"source" json:"source"`
	FPS        int    `mapstructure:"fps" json:"fps"`
	QRBox      int    `mapstructure:"qrbox" json:"qrbox"`
	FacingMode string `mapstructure:"facing_mode" json:"facing_mode"`
}

// RegistrationConfig bounds the registration POST.
type RegistrationConfig struct {
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// ServerConfig configures the daemon HTTP surface.
type ServerConfig struct {
	Addr      string `mapstructure:"addr" json:"addr"`
	PublicURL string `mapstructure:"public_url" json:"public_url"`
}

// LocalizationConfig controls default locale + fallback chains.
type LocalizationConfig struct {
	DefaultLocale string `mapstructure:"default_locale" json:"default_locale"`
}

// LoggingConfig picks the logger backend.
type LoggingConfig struct {
	Format string `mapstructure:"format" json:"format"`
	Level  string `mapstructure:"level" json:"level"`
	// File receives log output when the terminal is owned by the UI.
	File string `mapstructure:"file" json:"file"`
}

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"

	LogPretty = "pretty"
	LogJSON   = "json"
	LogText   = "text"

	FocusMostRecent = "most-recent"
	FocusFirst      = "first"

	ScannerClipboard = "clipboard"
	ScannerStdin     = "stdin"
)

// DefaultStorePath is the file store location shared by every process of the
// current user, under the user config directory.
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "pushrelay", "kv.json")
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Push: PushConfig{
			ReadyTimeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			Icon:        "/icon-192.png",
			Badge:       "/icon-192.png",
			ClickRoute:  "/",
			FocusPolicy: FocusMostRecent,
		},
		Store: StoreConfig{
			Driver:       StoreFile,
			Path:         DefaultStorePath(),
			RedisPrefix:  "pushrelay:",
			ClearRetries: 3,
			ClearBackoff: 100 * time.Millisecond,
		},
		Scanner: ScannerConfig{
			Source:     ScannerClipboard,
			FPS:        10,
			QRBox:      250,
			FacingMode: "environment",
		},
		Registration: RegistrationConfig{
			Timeout: 15 * time.Second,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8787",
			PublicURL: "http://127.0.0.1:8787",
		},
		Localization: LocalizationConfig{DefaultLocale: "en"},
		Logging: LoggingConfig{
			Format: LogPretty,
			Level:  "info",
		},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	if c.Localization.DefaultLocale == "" {
		return errors.New("localization.default_locale is required")
	}
	if c.Push.ReadyTimeout <= 0 {
		return fmt.Errorf("push.ready_timeout must be > 0")
	}
	switch c.Relay.FocusPolicy {
	case FocusMostRecent, FocusFirst:
	default:
		return fmt.Errorf("relay.focus_policy must be %q or %q", FocusMostRecent, FocusFirst)
	}
	if !strings.HasPrefix(c.Relay.ClickRoute, "/") {
		return fmt.Errorf("relay.click_route must start with /")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the file driver")
		}
	case StoreSQLite:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite driver")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if c.Store.ClearRetries < 0 {
		return fmt.Errorf("store.clear_retries must be >= 0")
	}
	switch c.Scanner.Source {
	case ScannerClipboard, ScannerStdin:
	default:
		return fmt.Errorf("scanner.source %q is not supported", c.Scanner.Source)
	}
	if c.Scanner.FPS <= 0 {
		return fmt.Errorf("scanner.fps must be > 0")
	}
	switch c.Logging.Format {
	case LogPretty, LogJSON, LogText:
	default:
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	if c.Registration.Timeout < 0 {
		return fmt.Errorf("registration.timeout must be >= 0")
	}
	if u, err := url.Parse(c.Server.PublicURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.public_url must be an absolute http(s) URL")
	}
	return nil
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// When cfgx.Build yields a zero value we fall back to a lightweight decoder.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	if m, ok := input.(map[string]any); ok {
		if err := normalizeDurations(m); err != nil {
			return Config{}, err
		}
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.Push.ReadyTimeout == 0 {
		c.Push.ReadyTimeout = defaults.Push.ReadyTimeout
	}
	if c.Relay.Icon == "" {
		c.Relay.Icon = defaults.Relay.Icon
	}
	if c.Relay.Badge == "" {
		c.Relay.Badge = defaults.Relay.Badge
	}
	if c.Relay.ClickRoute == "" {
		c.Relay.ClickRoute = defaults.Relay.ClickRoute
	}
	if c.Relay.FocusPolicy == "" {
		c.Relay.FocusPolicy = defaults.Relay.FocusPolicy
	}
	if c.Store.Driver == "" {
		c.Store.Driver = defaults.Store.Driver
	}
	if c.Store.Path == "" {
		c.Store.Path = defaults.Store.Path
	}
	if c.Store.RedisPrefix == "" {
		c.Store.RedisPrefix = defaults.Store.RedisPrefix
	}
	if c.Store.ClearRetries == 0 {
		c.Store.ClearRetries = defaults.Store.ClearRetries
	}
	if c.Store.ClearBackoff == 0 {
		c.Store.ClearBackoff = defaults.Store.ClearBackoff
	}
	if c.Scanner.Source == "" {
		c.Scanner.Source = defaults.Scanner.Source
	}
	if c.Scanner.FPS == 0 {
		c.Scanner.FPS = defaults.Scanner.FPS
	}
	if c.Scanner.QRBox == 0 {
		c.Scanner.QRBox = defaults.Scanner.QRBox
	}
	if c.Scanner.FacingMode == "" {
		c.Scanner.FacingMode = defaults.Scanner.FacingMode
	}
	if c.Registration.Timeout == 0 {
		c.Registration.Timeout = defaults.Registration.Timeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = defaults.Server.PublicURL
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if c.Localization.DefaultLocale == "" {
		c.Localization.DefaultLocale = defaults.Localization.DefaultLocale
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

// durationKeys lists the section/key pairs holding time.Duration values;
// file and env sources deliver them as strings like "10s".
var durationKeys = [][2]string{
	{"push", "ready_timeout"},
	{"store", "clear_backoff"},
	{"registration", "timeout"},
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}

func normalizeDurations(input map[string]any) error {
	for _, path := range durationKeys {
		section, ok := input[path[0]].(map[string]any)
		if !ok {
			continue
		}
		raw, ok := section[path[1]].(string)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", path[0], path[1], err)
		}
		section[path[1]] = int64(d)
	}
	return nil
}
