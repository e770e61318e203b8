package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/snapshot"
	"github.com/starford/itemdesk/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Storage StorageConfig     `yaml:"storage" toml:"storage"`
	List    ListConfig        `yaml:"list" toml:"list"`
	Events  EventsConfig      `yaml:"events" toml:"events"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
	Watch   WatchConfig       `yaml:"watch" toml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.List.Validate(); err != nil {
		return err
	}
	if err := c.Events.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where the item snapshot is kept.
//
// Path is the data directory for the file driver and the database file for
// the sqlite driver. Key names the slot inside the backend.
type StorageConfig struct {
	Driver    string `yaml:"driver" toml:"driver"`
	Path      string `yaml:"path" toml:"path"`
	RedisAddr string `yaml:"redis_addr" toml:"redis_addr"`
	Key       string `yaml:"key" toml:"key"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Key == "" {
		c.Key = snapshot.DefaultKey
	}
	needsPath := c.Driver == DriverFile || c.Driver == DriverSQLite
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverFile, DriverSQLite, DriverRedis, DriverMemory)),
		validation.Field(&c.Path, validation.When(needsPath, validation.Required)),
		validation.Field(&c.RedisAddr, validation.When(c.Driver == DriverRedis, validation.Required)),
		validation.Field(&c.Key, validation.By(func(any) error { return storage.ValidateKey(c.Key) })),
	)
}

// ListConfig holds list defaults.
type ListConfig struct {
	PageSize int `yaml:"page_size" toml:"page_size"`
}

// Validate validates the list configuration.
func (c *ListConfig) Validate() error {
	if c.PageSize == 0 {
		c.PageSize = itemstore.DefaultPageSize
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Min(1), validation.Max(itemstore.MaxPageSize)),
	)
}

// EventsConfig holds SSE settings.
type EventsConfig struct {
	Throttle time.Duration `yaml:"throttle" toml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	if c.Throttle == 0 {
		c.Throttle = 2 * time.Second
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(10*time.Millisecond)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WatchConfig controls reloading on external edits. Only the file driver
// can be watched.
type WatchConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			Path:   "./data",
			Key:    snapshot.DefaultKey,
		},
		List: ListConfig{
			PageSize: itemstore.DefaultPageSize,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}
